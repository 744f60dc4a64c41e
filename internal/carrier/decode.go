package carrier

import (
	"encoding/base64"
	"mime"
	"regexp"
	"strings"
	"unicode"
)

const previewLen = 200

var (
	resultTag = regexp.MustCompile(`(?s)<result>\s*([A-Za-z0-9+/=\s]+?)\s*</result>`)
	statusTag = regexp.MustCompile(`(?s)<status>\s*([^<]*?)\s*</status>`)
	faultTag  = regexp.MustCompile(`(?s)<fault>\s*([^<]*?)\s*</fault>`)
	stringTag = regexp.MustCompile(`(?s)<string>\s*([^<]*?)\s*</string>`)
	detailTag = regexp.MustCompile(`(?s)<detail>(.*?)</detail>`)
)

// DecodeLabel turns a label response into PDF bytes. Binary content types
// are returned untouched, otherwise the body is searched for a base64
// <result>. A <status>fault</status> body yields a *FaultError and anything
// else a *FormatError.
func DecodeLabel(statusCode int, contentType string, body []byte) ([]byte, error) {
	if isBinaryDocument(contentType) {
		return body, nil
	}

	text := string(body)
	if m := resultTag.FindStringSubmatch(text); m != nil {
		doc, err := base64.StdEncoding.DecodeString(stripSpace(m[1]))
		if err != nil {
			return nil, &FormatError{
				StatusCode:  statusCode,
				ContentType: contentType,
				Preview:     preview(body),
				Err:         err,
			}
		}
		return doc, nil
	}

	if fault := parseFault(text); fault != nil {
		return nil, fault
	}

	return nil, &FormatError{
		StatusCode:  statusCode,
		ContentType: contentType,
		Preview:     preview(body),
	}
}

func isBinaryDocument(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/pdf" || mediaType == "application/octet-stream"
}

func parseFault(text string) *FaultError {
	m := statusTag.FindStringSubmatch(text)
	if m == nil || !strings.EqualFold(m[1], "fault") {
		return nil
	}

	fault := &FaultError{Fault: "unknown"}
	if f := faultTag.FindStringSubmatch(text); f != nil && f[1] != "" {
		fault.Fault = f[1]
	}
	if s := stringTag.FindStringSubmatch(text); s != nil {
		fault.Message = s[1]
	}
	if d := detailTag.FindStringSubmatch(text); d != nil {
		fault.Detail = strings.TrimSpace(d[1])
	}
	return fault
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func preview(body []byte) string {
	if len(body) > previewLen {
		return string(body[:previewLen]) + "..."
	}
	return string(body)
}
