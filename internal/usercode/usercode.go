// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package usercode runs test-defined work (hooks and test bodies) so that a
// misbehaving runnable cannot hang or crash the runner.
package usercode

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// PanicHandler specifies how to handle panics in SafeCall.
type PanicHandler func(val interface{})

// ErrAbandoned is wrapped by errors returned from SafeCall when f did not
// return within its timeout and grace period.
var ErrAbandoned = errors.New("did not return on timeout")

// SafeCall runs f on a goroutine.
//
// f receives a context with the given timeout; a zero timeout means no
// timeout. If f does not return before the timeout, SafeCall waits a further
// gracePeriod for clean up. If f still has not returned, or ctx is canceled
// before f finishes, SafeCall abandons the goroutine and returns an error.
// name is included in the error to explain which runnable did not return.
//
// If f panics, ph is called with the recovered value on f's goroutine. ph is
// never called once SafeCall has decided to abandon f.
//
// A nil error means f returned (or called runtime.Goexit).
func SafeCall(ctx context.Context, name string, timeout, gracePeriod time.Duration, ph PanicHandler, f func(ctx context.Context)) error {
	// The main goroutine and the worker race for a single token. Whoever
	// takes it decides the outcome: the worker reports a panic, or the main
	// goroutine abandons the worker.
	var token int32
	takeToken := func() bool {
		return atomic.CompareAndSwapInt32(&token, 0, 1)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		defer func() {
			val := recover()
			if !takeToken() {
				return
			}
			// ph must run on this goroutine so the stack includes the panic site.
			if val != nil {
				ph(val)
			}
		}()

		fctx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
		f(fctx)
	}()

	// Wait for the worker to finish ph if it won the token.
	defer func() {
		if !takeToken() {
			<-done
		}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		tm := time.NewTimer(timeout + gracePeriod)
		defer tm.Stop()
		expired = tm.C
	}

	select {
	case <-done:
		return nil
	case <-expired:
		return errors.Wrapf(ErrAbandoned, "%s", name)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%s", name)
	}
}
