package relay

import (
	"context"
	"io"

	"github.com/upbeatlab/chatrelay/pkg/chat"
	"github.com/upbeatlab/chatrelay/pkg/sse"
)

// Drive reads events from src, decodes them and folds them into session,
// calling onChunk with every snapshot the session emits. When dest is not nil
// each consumed event is forwarded to it, so a relay can re-emit the stream
// while it reduces it.
//
// Drive stops at the first terminal condition and reads nothing after it. An
// in-band error is such a condition, so a relay forwarding to dest writes the
// closing [DONE] frame itself when session.Failed() reports true. A
// stream that ends without a terminal event finishes the session as if one
// had been received. Cancellation of ctx is returned as ctx.Err() and no
// callback runs once ctx is done.
func Drive(ctx context.Context, src io.Reader, dest io.Writer, session *chat.Session, onChunk func(fullText string)) error {
	tr := sse.NewTeeReader(src, dest)

	for !session.Terminated() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := tr.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ev == nil {
			session.Finish()
			break
		}

		step := session.Reduce(chat.Decode(*ev))
		if step.Emit && onChunk != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			onChunk(step.Snapshot)
		}
	}

	return nil
}
