package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-integration-client/pkg/httpclient"
)

const maxRenderedBody = 512

// checkForAPIErrors fails on 5xx and 404. Everything else, 401/403/400 included,
// is left for the payload to describe.
func checkForAPIErrors(op string, resp httpclient.Response) error {
	switch code := resp.StatusCode(); {
	case code >= http.StatusInternalServerError:
		return newServerError(op, resp)
	case code == http.StatusNotFound:
		return newNotFoundError(op)
	}
	return nil
}

// decodeBody returns the zero T for a blank body and the JSON-decoded body otherwise.
func decodeBody[T any](op string, resp httpclient.Response) (T, error) {
	var out T
	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		var zero T
		return zero, newDecodeError(op, reflect.TypeFor[T]().String(), resp.StatusCode(), err)
	}
	return out, nil
}

// renderResponse describes a response for error messages: status line, content type
// and a bounded body snippet. HTML error pages are reduced to their title and text.
func renderResponse(resp httpclient.Response) string {
	status := strings.TrimSpace(resp.Status())
	if status == "" {
		status = strconv.Itoa(resp.StatusCode())
		if text := http.StatusText(resp.StatusCode()); text != "" {
			status += " " + text
		}
	}

	var contentType string
	if h := resp.Header(); h != nil {
		contentType = h.Get("Content-Type")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "StatusCode: %s", status)
	if contentType != "" {
		fmt.Fprintf(&b, ", Content-Type: %s", contentType)
	}
	if snippet := bodySnippet(contentType, resp.Body()); snippet != "" {
		fmt.Fprintf(&b, ", Body: %s", snippet)
	}
	return b.String()
}

func bodySnippet(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	text := string(body)
	if looksLikeHTML(contentType, body) {
		if summary := summarizeHTML(body); summary != "" {
			text = summary
		}
	}
	if len(text) > maxRenderedBody {
		text = text[:maxRenderedBody] + "..."
	}
	return text
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return bytes.HasPrefix(bytes.ToLower(body), []byte("<!doctype html")) ||
		bytes.HasPrefix(bytes.ToLower(body), []byte("<html"))
}

func summarizeHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head meta, head link").Remove()

	title := collapseSpace(doc.Find("title").First().Text())
	text := collapseSpace(doc.Find("body").First().Text())
	switch {
	case title != "" && text != "" && !strings.HasPrefix(text, title):
		return title + ": " + text
	case text != "":
		return text
	default:
		return title
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
