// Package ui is the interactive viewer: a bubbletea program over the
// session's analysis state.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"binsight/internal/binsight/styles"
	"binsight/internal/scroll"
	"binsight/internal/session"
	"binsight/internal/ui/colorize"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewHex
	viewSource
	viewHelp
)

type symbolItem struct {
	address    uint64
	name       string
	filterTerm string
}

func (i symbolItem) Title() string {
	return fmt.Sprintf("%x  %s", i.address, i.name)
}

func (i symbolItem) Description() string { return "" }

func (i symbolItem) FilterValue() string { return i.filterTerm }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	var addrStyle lipgloss.Style
	var indicator string
	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	} else {
		indicator = " "
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}

	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	fmt.Fprintf(w, "%s %s  %s", indicator, addrStyle.Render(fmt.Sprintf("%12x", i.address)), nameStyle.Render(i.name))
}

type loadedMsg struct {
	state *session.State
	err   error
}

func loadCmd(sess *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		st, err := sess.Load(context.Background(), path)
		return loadedMsg{state: st, err: err}
	}
}

// Model drives the whole viewer.
type Model struct {
	sess *session.Session
	path string

	listingView viewport.Model
	hexView     viewport.Model
	sourceView  viewport.Model
	symbolsList list.Model
	spinner     spinner.Model
	palette     styles.Listing

	mode          viewMode
	loading       bool
	loadErr       error
	showIntrinsic bool
	width         int
	height        int
}

func NewModel(sess *session.Session, path string) Model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	hv := viewport.New()
	hv.SetWidth(80)
	hv.SetHeight(22)

	sv := viewport.New()
	sv.SetWidth(80)
	sv.SetHeight(22)

	delegate := itemDelegate{}
	symbolsList := list.New([]list.Item{}, delegate, 80, 22)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Title = "Symbols"
	symbolsList.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	symbolsList.SetShowHelp(true)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	return Model{
		sess:        sess,
		path:        path,
		listingView: vp,
		hexView:     hv,
		sourceView:  sv,
		symbolsList: symbolsList,
		spinner:     s,
		palette:     styles.NewListing(),
		mode:        viewListing,
		loading:     true,
		width:       80,
		height:      24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadCmd(m.sess, m.path), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		m.loadErr = msg.err
		if msg.err == nil && msg.state != nil {
			m.rebuildSymbolsList()
			if st := m.sess.Current(); st != nil {
				st.Buffer.SetAnchor(st.Image.Entry)
				st.Hex.SetAnchor(st.Image.Entry)
			}
			m.renderListing()
			m.renderHex()
		} else {
			m.listingView.SetContent(fmt.Sprintf("load failed: %v", msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading {
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.listingView.SetWidth(msg.Width)
			m.listingView.SetHeight(msg.Height - 2)
			m.hexView.SetWidth(msg.Width)
			m.hexView.SetHeight(msg.Height - 2)
			m.sourceView.SetWidth(msg.Width)
			m.sourceView.SetHeight(msg.Height - 2)
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.renderListing()
			m.renderHex()
		}

	case tea.KeyMsg:
		// While the symbols list is filtering it owns the keyboard,
		// apart from the quit chords.
		if m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c":
				m.sess.Close()
				return m, tea.Quit
			}
		} else {
			switch msg.String() {
			case "q", "ctrl+c":
				m.sess.Close()
				return m, tea.Quit
			case "l":
				m.mode = viewListing
				return m, nil
			case "s":
				if len(m.symbolsList.Items()) > 0 {
					m.mode = viewSymbols
				}
				return m, nil
			case "x":
				m.mode = viewHex
				m.renderHex()
				return m, nil
			case "?":
				m.showHelp()
				return m, nil
			case "i":
				m.showIntrinsic = !m.showIntrinsic
				m.rebuildSymbolsList()
				return m, nil
			case "esc":
				if m.mode == viewSource || m.mode == viewHelp {
					m.mode = viewListing
					return m, nil
				}
			case "enter":
				if m.mode == viewSymbols {
					if selectedItem := m.symbolsList.SelectedItem(); selectedItem != nil {
						if sym, ok := selectedItem.(symbolItem); ok {
							m.jumpTo(sym.address)
							m.mode = viewListing
						}
					}
					return m, nil
				}
				if m.mode == viewListing {
					m.followReference()
					return m, nil
				}
			case "o":
				if m.mode == viewListing {
					m.openSource()
					return m, nil
				}
			case "up", "k":
				if m.mode == viewListing {
					m.scrollListing(scroll.Backward, 1)
					return m, nil
				}
				if m.mode == viewHex {
					m.scrollHex(scroll.Backward, 1)
					return m, nil
				}
			case "down", "j":
				if m.mode == viewListing {
					m.scrollListing(scroll.Forward, 1)
					return m, nil
				}
				if m.mode == viewHex {
					m.scrollHex(scroll.Forward, 1)
					return m, nil
				}
			case "pgup", "b":
				if m.mode == viewListing {
					m.scrollListing(scroll.Backward, m.pageSize())
					return m, nil
				}
				if m.mode == viewHex {
					m.scrollHex(scroll.Backward, m.pageSize())
					return m, nil
				}
			case "pgdown", "f":
				if m.mode == viewListing {
					m.scrollListing(scroll.Forward, m.pageSize())
					return m, nil
				}
				if m.mode == viewHex {
					m.scrollHex(scroll.Forward, m.pageSize())
					return m, nil
				}
			case "g":
				if st := m.sess.Current(); st != nil && m.mode == viewListing {
					lo, _ := st.Stream.Bounds()
					m.jumpTo(lo)
					return m, nil
				}
			case "tab":
				switch m.mode {
				case viewListing:
					if len(m.symbolsList.Items()) > 0 {
						m.mode = viewSymbols
					} else {
						m.mode = viewHex
					}
				case viewSymbols:
					m.mode = viewHex
					m.renderHex()
				default:
					m.mode = viewListing
				}
				return m, nil
			}
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewSource:
		m.sourceView, cmd = m.sourceView.Update(msg)
	case viewHelp:
		m.sourceView, cmd = m.sourceView.Update(msg)
	default:
		// Listing and hex views scroll through the buffers above,
		// not through the viewport.
	}
	return m, cmd
}

func (m Model) View() string {
	if m.loading {
		return fmt.Sprintf("\n  %s analyzing %s...\n", m.spinner.View(), m.path)
	}

	var content string
	switch m.mode {
	case viewSymbols:
		content = m.symbolsList.View()
	case viewHex:
		content = m.hexView.View()
	case viewSource, viewHelp:
		content = m.sourceView.View()
	default:
		content = m.listingView.View()
	}

	var menu string
	switch m.mode {
	case viewSymbols:
		menu = " Enter: go to symbol • I: intrinsics • L: listing • Tab: cycle • Q: quit "
	case viewHex:
		menu = " J/K: scroll • L: listing • Tab: cycle • Q: quit "
	case viewSource, viewHelp:
		menu = " Esc: back • Q: quit "
	default:
		menu = " Enter: follow • O: source • S: symbols • X: hex • ?: help • Q: quit "
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func (m *Model) pageSize() int {
	n := m.height - 2
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) rebuildSymbolsList() {
	st := m.sess.Current()
	if st == nil {
		return
	}
	items := make([]list.Item, 0, len(st.Vault.Symbols()))
	for _, sym := range st.Vault.Symbols() {
		if sym.Intrinsic && !m.showIntrinsic {
			continue
		}
		items = append(items, symbolItem{
			address:    sym.Addr,
			name:       sym.Name,
			filterTerm: strings.ToLower(sym.Name + " " + sym.Raw),
		})
	}
	m.symbolsList.SetItems(items)
}

func (m *Model) jumpTo(addr uint64) {
	st := m.sess.Current()
	if st == nil {
		return
	}
	st.Buffer.SetAnchor(addr)
	m.renderListing()
}

func (m *Model) scrollListing(dir scroll.Direction, count int) {
	st := m.sess.Current()
	if st == nil {
		return
	}
	st.Buffer.Extend(dir, count)
	m.renderListing()
}

func (m *Model) scrollHex(dir scroll.Direction, count int) {
	st := m.sess.Current()
	if st == nil {
		return
	}
	st.Hex.Extend(dir, count)
	m.renderHex()
}

// followReference jumps to the control-flow target of the anchored
// instruction, if it lands on a decoded boundary.
func (m *Model) followReference() {
	st := m.sess.Current()
	if st == nil {
		return
	}
	row := st.Buffer.Row(st.Buffer.AnchorRow())
	entry, ok := st.Stream.RowAt(row.Addr)
	if !ok {
		return
	}
	res := st.Stream.At(entry)
	if res.Inst == nil || !res.Inst.HasTarget {
		return
	}
	if _, ok := st.ResolveReference(res.Inst.Target); ok {
		m.jumpTo(res.Inst.Target)
	}
}

// openSource shows the correlated source file for the anchored row.
func (m *Model) openSource() {
	st := m.sess.Current()
	if st == nil {
		return
	}
	row := st.Buffer.Row(st.Buffer.AnchorRow())
	if row.File == "" {
		return
	}
	data, err := os.ReadFile(row.File)
	if err != nil {
		m.sourceView.SetContent(fmt.Sprintf("cannot read %s: %v", row.File, err))
		m.mode = viewSource
		return
	}
	m.sourceView.SetContent(colorize.Source(row.File, string(data)))
	m.sourceView.SetYOffset(max(0, row.Line-m.pageSize()/2))
	m.mode = viewSource
}

const helpText = `# binsight

## Listing
| Key | Action |
|-----|--------|
| j/k, ↓/↑ | move one row |
| f/b, PgDn/PgUp | move one page |
| g | go to start of the stream |
| Enter | follow the branch or call target |
| o | open the correlated source file |

## Views
| Key | Action |
|-----|--------|
| s | symbol browser (/ to filter, i to show intrinsics) |
| x | raw hex view |
| Tab | cycle views |
| q | quit |
`

func (m *Model) showHelp() {
	if r := styles.HelpRenderer(m.width); r != nil {
		if out, err := r.Render(helpText); err == nil {
			m.sourceView.SetContent(out)
			m.mode = viewHelp
			return
		}
	}
	m.sourceView.SetContent(helpText)
	m.mode = viewHelp
}

func (m *Model) renderListing() {
	st := m.sess.Current()
	if st == nil {
		return
	}
	rows := st.Buffer.Window(m.pageSize())
	var sb strings.Builder
	for i, r := range rows {
		sb.WriteString(m.formatRow(r, i == 0))
		sb.WriteByte('\n')
	}
	m.listingView.SetContent(sb.String())
}

func (m *Model) formatRow(r scroll.Row, selected bool) string {
	addrStyle := m.palette.Address
	if selected {
		addrStyle = m.palette.Selected
	}

	switch r.Kind {
	case scroll.RowSection:
		return m.palette.Section.Render(decodeTokensText(r))
	case scroll.RowLabel:
		return fmt.Sprintf("%12s  %s", "", m.palette.Label.Render(decodeTokensText(r)))
	default:
		line := fmt.Sprintf("%s  %s %s",
			addrStyle.Render(fmt.Sprintf("%12x", r.Addr)),
			m.palette.Bytes.Render(fmt.Sprintf("%-24s", r.Bytes)),
			m.palette.RenderTokens(r.Tokens))
		if r.File != "" {
			line += m.palette.Source.Render(fmt.Sprintf("  ; %s:%d", r.File, r.Line))
		}
		return line
	}
}

func decodeTokensText(r scroll.Row) string {
	var sb strings.Builder
	for _, t := range r.Tokens {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func (m *Model) renderHex() {
	st := m.sess.Current()
	if st == nil {
		return
	}
	var sb strings.Builder
	for _, r := range st.Hex.Window(m.pageSize()) {
		sb.WriteString(fmt.Sprintf("%s  %-48s  %s\n",
			m.palette.Address.Render(fmt.Sprintf("%12x", r.Addr)),
			r.Hex,
			m.palette.Source.Render(r.ASCII)))
	}
	m.hexView.SetContent(sb.String())
}
