package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SirClappington/jobstream/internal/config"
	"github.com/SirClappington/jobstream/internal/domain"
)

// Encoder renders one stream message as event data.
type Encoder func(rep domain.Report) string

// EncoderFor returns the encoder for a config.Payload* format name.
func EncoderFor(format string) (Encoder, error) {
	switch format {
	case config.PayloadLegacy:
		return EncodeLegacy, nil
	case config.PayloadJSON:
		return EncodeJSON, nil
	}
	return nil, fmt.Errorf("unknown payload format %q", format)
}

// EncodeLegacy renders rep as a single-quoted dictionary, e.g.
// {'result': 'error', 'message': 'Job not found'}. Existing subscribers
// parse this by swapping quote characters, so the output is not JSON.
func EncodeLegacy(rep domain.Report) string {
	var b strings.Builder
	b.WriteByte('{')

	field := func(k, v string) {
		if b.Len() > 1 {
			b.WriteString(", ")
		}
		b.WriteString(quoteLegacy(k))
		b.WriteString(": ")
		b.WriteString(quoteLegacy(v))
	}

	if rep.JobID != "" {
		field("job_id", rep.JobID)
	}
	field("result", string(rep.Result))
	if rep.Message != "" {
		field("message", rep.Message)
	}

	b.WriteByte('}')
	return b.String()
}

// quoteLegacy quotes s with single quotes, switching to double quotes when s
// contains a single quote but no double quote.
func quoteLegacy(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case q:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}

func EncodeJSON(rep domain.Report) string {
	b, err := json.Marshal(rep)
	if err != nil {
		// Report only holds strings.
		panic(err)
	}
	return string(b)
}
