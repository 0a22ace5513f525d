// Package session ties one loaded binary to its analysis products:
// the image, the instruction stream, the debug vault and the scroll
// buffers. The bundle is replaced atomically on reload; there is no
// shared mutable singleton, and a failed load leaves the previous
// state usable.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"binsight/internal/binimg"
	"binsight/internal/debugvault"
	"binsight/internal/decode"
	"binsight/internal/decode/armd"
	"binsight/internal/decode/mips"
	"binsight/internal/decode/riscv"
	"binsight/internal/decode/x86"
	"binsight/internal/dwarfx"
	"binsight/internal/processor"
	"binsight/internal/scroll"
)

// State is the immutable analysis bundle for one loaded binary.
type State struct {
	Image   *binimg.Image
	Stream  *processor.Stream
	Vault   *debugvault.Vault
	Buffer  *scroll.Buffer
	Hex     *scroll.HexBuffer
	Decoder decode.Decoder
}

// ResolveReference maps a click-to-navigate address to its listing
// row. Only exact instruction boundaries resolve; anything else is an
// unresolved reference, rendered as a bare address.
func (st *State) ResolveReference(addr uint64) (int, bool) {
	return st.Buffer.RowForAddr(addr)
}

// Session owns the current state and the lifecycle of load attempts.
type Session struct {
	policy    processor.Policy
	scrollCfg scroll.Config
	logger    *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	state  *State
}

func New(policy processor.Policy, scrollCfg scroll.Config, logger *log.Logger) *Session {
	return &Session{policy: policy, scrollCfg: scrollCfg, logger: logger}
}

// Current returns the active state, nil before the first successful
// load.
func (s *Session) Current() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load analyzes the binary at path and swaps it in. Any in-flight
// load is cancelled first; its partial results are discarded and
// never exposed. On failure the previous state stays current and the
// error describes the rejected load.
func (s *Session) Load(ctx context.Context, path string) (*State, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	st, err := s.analyze(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	s.mu.Lock()
	old := s.state
	s.state = st
	s.mu.Unlock()

	if old != nil {
		old.Image.Close()
	}
	return st, nil
}

func (s *Session) analyze(ctx context.Context, path string) (*State, error) {
	img, err := binimg.Open(path)
	if err != nil {
		return nil, err
	}

	dec, err := decoderFor(img)
	if err != nil {
		img.Close()
		return nil, err
	}

	// A stripped binary is not a failed load; the vault degrades to
	// nearest-symbol naming.
	info, err := dwarfx.Load(path)
	if err != nil && !errors.Is(err, dwarfx.ErrNoDebugInfo) {
		if s.logger != nil {
			s.logger.Warn("debug info unreadable, continuing without", "err", err)
		}
		info = nil
	}
	vault := debugvault.Build(info, img.Symbols, s.logger)

	stream, err := processor.New(img, dec, s.policy, s.logger).Run(ctx)
	if err != nil {
		img.Close()
		return nil, err
	}

	buf := scroll.New(stream, vault, img.Sections, dec.MaxLen(), s.scrollCfg)
	return &State{
		Image:   img,
		Stream:  stream,
		Vault:   vault,
		Buffer:  buf,
		Hex:     scroll.NewHex(img.Sections),
		Decoder: dec,
	}, nil
}

// Close releases the current state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.state != nil {
		err := s.state.Image.Close()
		s.state = nil
		return err
	}
	return nil
}

// decoderFor selects the backend once per load from the detected
// machine type. Variants are never mixed within one stream.
func decoderFor(img *binimg.Image) (decode.Decoder, error) {
	switch img.Arch {
	case decode.ArchX86_64:
		return x86.New(), nil
	case decode.ArchARM:
		return armd.NewA32(), nil
	case decode.ArchARM64:
		return armd.NewA64(), nil
	case decode.ArchRISCV:
		return riscv.New(), nil
	case decode.ArchMIPS:
		return mips.New(img.Order), nil
	default:
		return nil, decode.ErrUnsupportedArch{Arch: img.Arch}
	}
}
