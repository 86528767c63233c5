package mcpcore

import (
	"encoding/base64"
	"strconv"
)

// pageSize is the fixed page size for every list handler, per the
// component design.
const pageSize = 50

// encodeCursor turns a zero-based item offset into the opaque cursor string
// returned as nextCursor: Base64 of the offset's UTF-8 decimal form.
func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// decodeCursor turns an opaque cursor string back into an offset. A missing,
// non-numeric, or negative cursor decodes to 0 rather than failing the
// request, so a malformed Last-Event-ID-style cursor degrades to "start
// over" instead of a hard error.
func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(decoded))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// paginate slices items starting at cursor's offset, returning at most
// pageSize of them plus the nextCursor to resume from (empty if exhausted).
func paginate[T any](items []T, cursor string) (page []T, nextCursor string) {
	offset := decodeCursor(cursor)
	if offset >= len(items) {
		return nil, ""
	}
	end := offset + pageSize
	if end >= len(items) {
		return items[offset:], ""
	}
	return items[offset:end], encodeCursor(end)
}
