package httpapi

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/engine"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/request"
)

const contentType = "application/json; charset=utf-8"

// pageLinks are the navigation links of a collection page. Empty links
// are left out of the envelope.
type pageLinks struct {
	first, prev, next, last string
}

// paging computes the navigation links for a page of limit objects at
// offset out of total. The last page is the one holding the final
// total%limit objects (or a full page), and prev/next stay within
// [0, last].
func paging(url string, limit, offset int, total int64) pageLinks {
	var links pageLinks
	lim, off := int64(limit), int64(offset)

	nz := max(lim, 1)
	rem := total % nz
	if rem == 0 {
		rem = nz
	}
	lastOffset := max(total-rem, 0)
	prevOffset := max(min(lastOffset, off-lim), 0)
	nextOffset := min(off+lim, lastOffset)

	page := url + "?limit=" + strconv.FormatInt(lim, 10)
	if lim < total {
		links.first = page
		links.last = page + "&offset=" + strconv.FormatInt(lastOffset, 10)
	}
	if off > 0 {
		links.prev = page + "&offset=" + strconv.FormatInt(prevOffset, 10)
	}
	if off < nextOffset && nextOffset < total {
		links.next = page + "&offset=" + strconv.FormatInt(nextOffset, 10)
	}
	return links
}

// collectionEnvelope wraps the objects of a collection response. Fields
// appear in a fixed order and only when requested.
func collectionEnvelope(d *request.Descriptor, rawQuery string, res *engine.Result) *ir.Object {
	url := d.URL()
	self := url
	if rawQuery != "" {
		self += "?" + rawQuery
	}
	links := paging(url, d.Params.Limit, d.Params.Offset, res.Total)

	objects := res.Objects
	if objects == nil {
		objects = ir.Array{}
	}

	env := ir.NewObject()
	set := func(name string, v ir.Value) {
		if d.IsRequested(name) {
			env.Set(name, v)
		}
	}
	setLink := func(name, link string) {
		if link != "" {
			set(name, ir.String(link))
		}
	}

	set("link", ir.String(self))
	set("offset", ir.Int(d.Params.Offset))
	set("limit", ir.Int(d.Params.Limit))
	set("total", ir.Int(res.Total))
	set(d.Root, objects)
	set(d.Root+"Count", ir.Int(len(objects)))
	setLink("first", links.first)
	setLink("prev", links.prev)
	setLink("next", links.next)
	setLink("last", links.last)
	return env
}

// attachWarnings adds the queued warnings to a successful response.
func attachWarnings(body *ir.Object, issues *apierr.Issues) {
	_, envelope := apierr.Envelope(nil, issues)
	if len(envelope.Warnings) == 0 {
		return
	}
	ws := make(ir.Array, 0, len(envelope.Warnings))
	for _, w := range envelope.Warnings {
		ws = append(ws, ir.NewObject(
			ir.O("code", ir.String(w.Code)),
			ir.O("message", ir.String(w.Message)),
		))
	}
	body.Set("warnings", ws)
}

func (s *Server) write(c *gin.Context, status int, body *ir.Object, pretty bool) {
	raw, err := ir.MarshalValue(body)
	if err != nil {
		s.writeError(c, apierr.ServerError("Unable to encode response: %v", err), nil, pretty)
		return
	}
	s.send(c, status, raw, pretty)
}

func (s *Server) writeError(c *gin.Context, err error, issues *apierr.Issues, pretty bool) {
	status, body := apierr.Envelope(err, issues)
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	raw, mErr := json.Marshal(body)
	if mErr != nil {
		raw = []byte(`{"errors":[{"code":"server-error","message":"Unable to encode error response."}]}`)
		status = 500
	}
	s.send(c, status, raw, pretty)
}

func (s *Server) send(c *gin.Context, status int, raw []byte, pretty bool) {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			raw = buf.Bytes()
		}
	}
	s.metrics.ObserveRequest(status)
	c.Data(status, contentType, raw)
}
