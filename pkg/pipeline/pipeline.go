package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/admission"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard/cache"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/upstream"
)

// Pipeline composes the guard components into the request path. One
// instance is constructed at startup with its collaborators injected and
// shared by all requests.
type Pipeline struct {
	scanner   guard.Scanner
	cache     cache.Store
	admission *admission.Controller
	upstream  *upstream.Client
	config    Config
	observer  Observer
}

// New creates a pipeline. observer may be nil.
func New(scanner guard.Scanner, store cache.Store, controller *admission.Controller, client *upstream.Client, config Config, observer Observer) *Pipeline {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Pipeline{
		scanner:   scanner,
		cache:     store,
		admission: controller,
		upstream:  client,
		config:    config,
		observer:  observer,
	}
}

// Execute runs a non-streaming request through the full pipeline and
// returns the raw backend response body on success.
//
// Error returns: *BlockedError (input or output), admission errors
// (*admission.QueueFullError, *admission.QueueTimeoutError), or upstream
// errors (*upstream.ConnectError etc.), all distinguishable by errors.As.
func (p *Pipeline) Execute(ctx context.Context, req *Request) ([]byte, error) {
	if err := p.checkInput(ctx, req); err != nil {
		return nil, err
	}

	slot, err := p.admission.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer slot.Release()

	body, err := p.upstream.Post(ctx, req.Path, req.Payload)
	if err != nil {
		return nil, err
	}

	text, _ := upstream.ExtractText(body)
	if err := p.checkOutput(ctx, req, text); err != nil {
		return nil, err
	}

	return body, nil
}

// ExecuteStream runs a streaming request. Each upstream chunk is handed to
// emit in arrival order; emit must deliver it downstream before returning.
//
// An input block returns *BlockedError before anything is emitted, so the
// caller can still answer with a plain rejection. An output block mid-stream
// emits exactly one synthetic block chunk (BlockBody with done=true),
// cancels upstream, and returns *BlockedError; the caller must not write
// anything further to the client.
func (p *Pipeline) ExecuteStream(ctx context.Context, req *Request, emit func(raw []byte) error) error {
	if err := p.checkInput(ctx, req); err != nil {
		return err
	}

	slot, err := p.admission.Acquire(ctx)
	if err != nil {
		return err
	}
	defer slot.Release()

	stream, err := p.upstream.Stream(ctx, req.Path, req.Payload)
	if err != nil {
		return err
	}
	defer stream.Close()

	// StreamState: owned exclusively by this goroutine, never shared.
	var (
		buffered      []byte
		sinceLastScan int
	)

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		buffered = append(buffered, chunk.Text...)
		sinceLastScan += len(chunk.Text)

		if chunk.Done {
			// Final chunk: scan everything not yet verified before the
			// final marker is forwarded, so a late violation replaces
			// the completion marker instead of trailing it. Output that
			// never reached the minimum-length floor is skipped as
			// statistically unreliable to scan.
			if sinceLastScan > 0 && len(buffered) >= p.config.MinOutputLength {
				if err := p.scanPass(ctx, req, stream, string(buffered), emit); err != nil {
					return err
				}
			}
			return emit(chunk.Raw)
		}

		// Stream-first: forward the raw chunk before the opportunistic
		// scan pass.
		if err := emit(chunk.Raw); err != nil {
			return err
		}

		if sinceLastScan >= p.config.ScanCadenceChars && len(buffered) >= p.config.MinOutputLength {
			if err := p.scanPass(ctx, req, stream, string(buffered), emit); err != nil {
				return err
			}
			sinceLastScan = 0
		}
	}
}

// scanPass scans the accumulated output. On a block it cancels upstream,
// emits the single synthetic block chunk, and returns *BlockedError.
func (p *Pipeline) scanPass(ctx context.Context, req *Request, stream *upstream.Stream, text string, emit func([]byte) error) error {
	verdict, err := p.scanOutput(ctx, req, text)
	var blocked *BlockedError
	switch {
	case err != nil:
		// A fail-closed scanner fault blocks the stream the same way a
		// real verdict does.
		var ok bool
		if blocked, ok = err.(*BlockedError); !ok {
			return err
		}
	case verdict.Allowed:
		return nil
	default:
		blocked = newBlockedError(guard.DirectionOutput, verdict)
	}
	p.observer.RequestBlocked(ctx, req, blocked)

	// Cut the backend off before telling the client: no tokens are
	// produced for output that will never be forwarded.
	stream.Close()

	slog.InfoContext(ctx, "stream blocked by output scan",
		"client", req.ClientID,
		"scanned_chars", len(text),
		"reason", blocked.Message,
	)

	if err := emit(BlockBody(blocked, true)); err != nil {
		return err
	}
	return blocked
}

// checkInput resolves the input verdict via cache, scanner, and the input
// fault policy. Returns nil when the prompt may proceed.
func (p *Pipeline) checkInput(ctx context.Context, req *Request) error {
	if guard.NormalizeText(req.Prompt) == "" {
		return nil
	}

	key := guard.CacheKey(guard.DirectionInput, req.Prompt, p.config.ConfigVersion)

	start := time.Now()
	if verdict, ok := p.cache.Get(ctx, key); ok {
		p.observer.ScanCompleted(guard.DirectionInput, true, verdict.Allowed, time.Since(start))
		return p.inputResult(ctx, req, verdict)
	}

	verdict, err := p.scanner.ScanInput(ctx, req.Prompt)
	if err != nil {
		verdict, err = p.resolveFault(ctx, guard.DirectionInput, err, p.config.BlockOnInputScanError)
		if err != nil {
			blocked := err.(*BlockedError)
			p.observer.RequestBlocked(ctx, req, blocked)
			return blocked
		}
		// Fail-open: do not cache a verdict the scanner never produced.
		return p.inputResult(ctx, req, verdict)
	}

	p.cache.Set(ctx, key, verdict)
	p.observer.ScanCompleted(guard.DirectionInput, false, verdict.Allowed, time.Since(start))
	return p.inputResult(ctx, req, verdict)
}

// inputResult converts a resolved input verdict into the pipeline result.
func (p *Pipeline) inputResult(ctx context.Context, req *Request, verdict *guard.Verdict) error {
	if verdict.Allowed {
		return nil
	}
	blocked := newBlockedError(guard.DirectionInput, verdict)
	p.observer.RequestBlocked(ctx, req, blocked)
	return blocked
}

// checkOutput resolves the complete-output verdict for non-streaming
// responses.
func (p *Pipeline) checkOutput(ctx context.Context, req *Request, text string) error {
	if len(text) < p.config.MinOutputLength {
		return nil
	}

	verdict, err := p.scanOutput(ctx, req, text)
	if err != nil {
		if blocked, ok := err.(*BlockedError); ok {
			p.observer.RequestBlocked(ctx, req, blocked)
		}
		return err
	}
	if verdict.Allowed {
		return nil
	}

	blocked := newBlockedError(guard.DirectionOutput, verdict)
	p.observer.RequestBlocked(ctx, req, blocked)
	return blocked
}

// scanOutput resolves one output scan pass via cache, scanner, and the
// output fault policy. A returned error is already a *BlockedError.
func (p *Pipeline) scanOutput(ctx context.Context, req *Request, text string) (*guard.Verdict, error) {
	key := guard.CacheKey(guard.DirectionOutput, text, p.config.ConfigVersion)

	start := time.Now()
	if verdict, ok := p.cache.Get(ctx, key); ok {
		p.observer.ScanCompleted(guard.DirectionOutput, true, verdict.Allowed, time.Since(start))
		return verdict, nil
	}

	verdict, err := p.scanner.ScanOutput(ctx, text, req.Prompt)
	if err != nil {
		verdict, err = p.resolveFault(ctx, guard.DirectionOutput, err, p.config.BlockOnOutputScanError)
		if err != nil {
			return nil, err
		}
		return verdict, nil
	}

	p.cache.Set(ctx, key, verdict)
	p.observer.ScanCompleted(guard.DirectionOutput, false, verdict.Allowed, time.Since(start))
	return verdict, nil
}

// resolveFault applies the fail-open/fail-closed policy to a scanner
// fault. Fail-closed yields a *BlockedError attributed to "guard_error";
// fail-open logs and yields a pass-through verdict.
func (p *Pipeline) resolveFault(ctx context.Context, direction guard.Direction, scanErr error, failClosed bool) (*guard.Verdict, error) {
	if failClosed {
		slog.WarnContext(ctx, "scanner fault, failing closed",
			"direction", direction,
			"error", scanErr,
		)
		return nil, newBlockedError(direction, guardErrorVerdict(scanErr))
	}

	slog.WarnContext(ctx, "scanner fault, failing open",
		"direction", direction,
		"error", scanErr,
	)
	return guard.Allow(), nil
}
