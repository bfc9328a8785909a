package crypto

import (
	"bytes"
	"strconv"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// CanonicalClaimMessage builds the exact bytes an issuer signs for a claim.
// Field order is fixed: metrics (mrr, customers, tier), timestamp, then
// accountHash only when includeAccountHash is set. Issuers and every verifier
// must call this function; reconstructing the message any other way breaks
// agreement on which shape was signed.
func CanonicalClaimMessage(metrics domain.Metrics, timestamp string, accountHash string, includeAccountHash bool) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(`{"metrics":{"mrr":`)
	buf.WriteString(strconv.FormatUint(metrics.MRR, 10))
	buf.WriteString(`,"customers":`)
	buf.WriteString(strconv.FormatUint(metrics.Customers, 10))
	buf.WriteString(`,"tier":`)
	writeString(buf, metrics.Tier)
	buf.WriteString(`},"timestamp":`)
	writeString(buf, timestamp)
	if includeAccountHash {
		buf.WriteString(`,"accountHash":`)
		writeString(buf, accountHash)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// writeString quotes s the way JSON.stringify does: only the quote, the
// backslash and control characters are escaped.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0x0f])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
