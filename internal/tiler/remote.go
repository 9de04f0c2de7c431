package tiler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	maxRemoteBody        = 32 << 20
)

// RemoteOptions configures a RemoteRenderer.
type RemoteOptions struct {
	// BaseURL of the rendering service, e.g. http://127.0.0.1:8081
	BaseURL string

	Timeout time.Duration

	// Transport defaults to http.DefaultTransport. It is always wrapped
	// for trace propagation.
	Transport http.RoundTripper
}

// RemoteRenderer delegates to a rendering service that exposes the same
// path layout as this API. Mosaic tiles are sent to /mosaic/tiles with one
// assets parameter per asset.
type RemoteRenderer struct {
	base   *url.URL
	client *http.Client
}

var _ Renderer = (*RemoteRenderer)(nil)

func NewRemoteRenderer(opts RemoteOptions) (*RemoteRenderer, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, xerrors.Newf("renderer url must be http(s)://host[:port] (got %q)", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}
	tr := opts.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	return &RemoteRenderer{
		base: u,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(tr),
		},
	}, nil
}

func (rr *RemoteRenderer) Info(ctx context.Context, req DatasetRequest) (json.RawMessage, error) {
	b, _, err := rr.get(ctx, "/"+req.Kind+"/info", datasetQuery(req))
	return b, err
}

func (rr *RemoteRenderer) Statistics(ctx context.Context, req DatasetRequest) (json.RawMessage, error) {
	b, _, err := rr.get(ctx, "/"+req.Kind+"/statistics", datasetQuery(req))
	return b, err
}

func (rr *RemoteRenderer) Point(ctx context.Context, req PointRequest) (*PointValues, error) {
	p := "/" + req.Kind + "/point/" +
		strconv.FormatFloat(req.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(req.Lat, 'f', -1, 64)
	b, _, err := rr.get(ctx, p, datasetQuery(req.DatasetRequest))
	if err != nil {
		return nil, err
	}
	var out PointValues
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, xerrors.Wrap(err, "decode point response")
	}
	return &out, nil
}

func (rr *RemoteRenderer) Tile(ctx context.Context, req TileRequest) (*Image, error) {
	q := cloneQuery(req.Query)
	kind := req.Kind
	if len(req.Assets) > 0 {
		kind = "mosaic"
		q.Del("url")
		q["assets"] = append([]string(nil), req.Assets...)
	} else {
		q.Set("url", req.URL)
	}
	p := "/" + kind + "/tiles/" + url.PathEscape(req.TileMatrixSet) + "/" +
		strconv.Itoa(req.Z) + "/" + strconv.Itoa(req.X) + "/" +
		strconv.Itoa(req.Y) + "@" + strconv.Itoa(req.Scale) + "x." + req.Format

	b, ct, err := rr.get(ctx, p, q)
	if err != nil {
		return nil, err
	}
	if ct == "" {
		ct, _ = ContentType(req.Format)
	}
	return &Image{ContentType: ct, Data: b}, nil
}

func (rr *RemoteRenderer) TileMatrixSets(ctx context.Context) ([]string, error) {
	b, _, err := rr.get(ctx, "/tileMatrixSets", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		TileMatrixSets []struct {
			ID string `json:"id"`
		} `json:"tileMatrixSets"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, xerrors.Wrap(err, "decode tileMatrixSets")
	}
	out := make([]string, 0, len(body.TileMatrixSets))
	for _, t := range body.TileMatrixSets {
		out = append(out, t.ID)
	}
	return out, nil
}

func (rr *RemoteRenderer) TileMatrixSet(ctx context.Context, id string) (json.RawMessage, error) {
	b, _, err := rr.get(ctx, "/tileMatrixSets/"+url.PathEscape(id), nil)
	return b, err
}

func (rr *RemoteRenderer) ColorMaps(ctx context.Context) ([]string, error) {
	b, _, err := rr.get(ctx, "/colorMaps", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		ColorMaps []string `json:"colorMaps"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, xerrors.Wrap(err, "decode colorMaps")
	}
	return body.ColorMaps, nil
}

func (rr *RemoteRenderer) Algorithms(ctx context.Context) (json.RawMessage, error) {
	b, _, err := rr.get(ctx, "/algorithms", nil)
	return b, err
}

func (rr *RemoteRenderer) Versions(ctx context.Context) (map[string]string, error) {
	b, _, err := rr.get(ctx, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Versions map[string]string `json:"versions"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, xerrors.Wrap(err, "decode healthz")
	}
	return body.Versions, nil
}

func (rr *RemoteRenderer) get(ctx context.Context, p string, q url.Values) ([]byte, string, error) {
	u := *rr.base
	u.Path = strings.TrimRight(u.Path, "/") + p
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", xerrors.Wrap(err, "build renderer request")
	}
	resp, err := rr.client.Do(req)
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "renderer %s", p)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "read renderer %s", p)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", remoteError(resp.StatusCode, b)
	}
	return b, resp.Header.Get("Content-Type"), nil
}

func remoteError(status int, body []byte) error {
	var d struct {
		Detail string `json:"detail"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &d) == nil && d.Detail != "" {
		msg = d.Detail
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return xerrors.Newf("%w: %s", ErrBadRequest, msg)
	case http.StatusNotFound:
		return xerrors.Newf("%w: %s", ErrNotFound, msg)
	case http.StatusNotImplemented:
		return xerrors.Newf("%w: %s", ErrUnavailable, msg)
	}
	return xerrors.Newf("renderer status %d: %s", status, msg)
}

func datasetQuery(req DatasetRequest) url.Values {
	q := cloneQuery(req.Query)
	q.Set("url", req.URL)
	return q
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
