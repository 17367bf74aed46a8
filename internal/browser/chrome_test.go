package browser

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPollUntil(t *testing.T) {
	Convey("Given a check that blocks until its context ends", t, func() {
		blocked := func(ctx context.Context) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		}

		Convey("When the wait timeout is shorter than the caller's deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			start := time.Now()
			res := pollUntil(ctx, 50*time.Millisecond, blocked)

			Convey("Then the wait times out on its own timeout", func() {
				So(res, ShouldEqual, WaitTimedOut)
				So(time.Since(start), ShouldBeLessThan, time.Second)
			})
		})

		Convey("When the caller gives up first", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			Convey("Then the wait reports cancellation", func() {
				So(pollUntil(ctx, time.Minute, blocked), ShouldEqual, WaitCanceled)
			})
		})
	})

	Convey("Given a check that succeeds on the third call", t, func() {
		calls := 0
		check := func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		}

		Convey("Then the wait is found", func() {
			So(pollUntil(context.Background(), 5*time.Second, check), ShouldEqual, WaitFound)
			So(calls, ShouldEqual, 3)
		})
	})
}
