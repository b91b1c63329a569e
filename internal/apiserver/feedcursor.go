package apiserver

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"manifold/internal/apierr"
)

// feedCursor is the opaque pagination token for "GET
// /projects/{pid}/feed/messages" and "/feed/spans" (spec.md §6: "cursor is
// base64url of (timestamp_us, tiebreak_id)"). Paging walks strictly
// backwards in time: the next page starts just before (TimestampUs,
// TiebreakID) in descending order, so two rows sharing a timestamp never
// get split across pages inconsistently.
type feedCursor struct {
	TimestampUs int64
	TiebreakID  string
}

func encodeCursor(c feedCursor) string {
	raw := strconv.FormatInt(c.TimestampUs, 10) + "," + c.TiebreakID
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (feedCursor, error) {
	if s == "" {
		return feedCursor{}, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return feedCursor{}, apierr.Validation("INVALID_CURSOR", "cursor is not valid base64url")
	}
	parts := strings.SplitN(string(raw), ",", 2)
	if len(parts) != 2 {
		return feedCursor{}, apierr.Validation("INVALID_CURSOR", "cursor is malformed")
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return feedCursor{}, apierr.Validation("INVALID_CURSOR", "cursor timestamp is not an integer")
	}
	return feedCursor{TimestampUs: ts, TiebreakID: parts[1]}, nil
}

func (c feedCursor) String() string {
	return fmt.Sprintf("%d:%s", c.TimestampUs, c.TiebreakID)
}

// after reports whether (ts, tiebreak) comes strictly after this cursor in
// the feed's descending-time walk order (an older timestamp, or the same
// timestamp with a smaller tiebreak), i.e. whether it belongs on the next
// page.
func (c feedCursor) after(ts int64, tiebreak string) bool {
	if ts != c.TimestampUs {
		return ts < c.TimestampUs
	}
	return tiebreak < c.TiebreakID
}
