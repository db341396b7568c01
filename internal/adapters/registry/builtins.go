package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// Builtin job kinds.
const (
	KindNoop  = "noop"
	KindSleep = "sleep"
	KindSpin  = "spin"
	KindFail  = "fail"
)

// RegisterBuiltins adds the builtin kinds to r.
//
//   - noop: does nothing.
//   - sleep: waits for params.duration ("5ms"), returning early if ctx ends.
//   - spin: burns CPU for params.iterations rounds.
//   - fail: returns params.message as an error, or panics with it when
//     params.panic is true.
func RegisterBuiltins(r JobFactory) error {
	return errors.Join(
		r.Register(KindNoop, newNoop),
		r.Register(KindSleep, newSleep),
		r.Register(KindSpin, newSpin),
		r.Register(KindFail, newFail),
	)
}

func newNoop(spec Spec) (domain.Job, error) {
	return domain.NewFuncJob(spec.ID, nil, spec.Deps...), nil
}

func newSleep(spec Spec) (domain.Job, error) {
	d, err := durationParam(spec.Params, "duration", time.Millisecond)
	if err != nil {
		return nil, err
	}
	return domain.NewFuncJob(spec.ID, func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, spec.Deps...), nil
}

func newSpin(spec Spec) (domain.Job, error) {
	n, err := intParam(spec.Params, "iterations", 10000)
	if err != nil {
		return nil, err
	}
	return domain.NewFuncJob(spec.ID, func(context.Context) error {
		spin(n)
		return nil
	}, spec.Deps...), nil
}

func newFail(spec Spec) (domain.Job, error) {
	msg, err := stringParam(spec.Params, "message", "job failed")
	if err != nil {
		return nil, err
	}
	doPanic, err := boolParam(spec.Params, "panic", false)
	if err != nil {
		return nil, err
	}
	return domain.NewFuncJob(spec.ID, func(context.Context) error {
		if doPanic {
			panic(msg)
		}
		return errors.New(msg)
	}, spec.Deps...), nil
}

var spinSink atomic.Uint64

func spin(n int) {
	var x uint64 = 1469598103934665603
	for i := range n {
		x ^= uint64(i)
		x *= 1099511628211
	}
	spinSink.Store(x)
}

func durationParam(params map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("param %q: want duration string, got %T", key, v)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("param %q: negative duration %s", key, d)
	}
	return d, nil
}

func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(int(n)) {
			return 0, fmt.Errorf("param %q: want non-negative integer, got %v", key, n)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("param %q: want non-negative integer, got %d", key, n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("param %q: want number, got %T", key, v)
	}
}

func stringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q: want string, got %T", key, v)
	}
	return s, nil
}

func boolParam(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %q: want bool, got %T", key, v)
	}
	return b, nil
}
