package routes

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Brownie44l1/braintumor-api/internal/handlers"
	"github.com/Brownie44l1/braintumor-api/internal/metrics"
	"github.com/Brownie44l1/braintumor-api/internal/model"
)

var knownClasses = map[string]bool{
	"glioma_tumor":     true,
	"meningioma_tumor": true,
	"no_tumor":         true,
	"pituitary_tumor":  true,
}

func init() {
	gin.SetMode(gin.TestMode)
}

func fakeModelServer(t *testing.T, predictions string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instances [][][][]int `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Instances) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error": "bad instances"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, predictions)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(t *testing.T, endpoint string) *gin.Engine {
	t.Helper()
	return newRouterLogging(t, endpoint, io.Discard)
}

func newRouterLogging(t *testing.T, endpoint string, logOut io.Writer) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(logOut, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	classifier := model.NewClassifier(model.NewRemoteClient(endpoint), model.DefaultMetadata())
	h := handlers.NewHandler(classifier, m, logger, 10<<20)
	return SetupRoutes(h, []string{"http://localhost", "http://localhost:3000"}, m, reg, logger)
}

func upload(t *testing.T, r *gin.Engine, content []byte) (int, map[string]any) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "mri.png")
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/braintumor/predict", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not a JSON object: %v (%s)", err, w.Body.String())
	}
	return w.Code, resp
}

func scanPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			v := uint8((x + y) / 2)
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPredict_ValidImage(t *testing.T) {
	srv := fakeModelServer(t, `{"predictions": [[0.02, 0.9, 0.05, 0.03]]}`)
	r := newRouter(t, srv.URL)

	status, resp := upload(t, r, scanPNG(t))

	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	class, _ := resp["class"].(string)
	if !knownClasses[class] {
		t.Fatalf("Unexpected class %v", resp["class"])
	}
	if class != "meningioma_tumor" {
		t.Errorf("Expected meningioma_tumor, got %s", class)
	}
	confidence, ok := resp["confidence"].(float64)
	if !ok || confidence < 0 || confidence > 1 {
		t.Errorf("Confidence out of range: %v", resp["confidence"])
	}
}

func TestPredict_NonImage(t *testing.T) {
	srv := fakeModelServer(t, `{"predictions": [[1, 0, 0, 0]]}`)
	r := newRouter(t, srv.URL)

	status, resp := upload(t, r, []byte("%PDF-1.4 not an image"))

	if status != http.StatusOK {
		t.Errorf("Expected 200, got %d", status)
	}
	if _, ok := resp["error"]; !ok {
		t.Errorf("Expected error envelope, got %v", resp)
	}
}

func TestPredict_UpstreamUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()
	r := newRouter(t, url)

	for i := 0; i < 2; i++ {
		status, resp := upload(t, r, scanPNG(t))
		if status != http.StatusOK {
			t.Errorf("Expected 200, got %d", status)
		}
		msg, _ := resp["error"].(string)
		if !strings.Contains(msg, "inference request") {
			t.Errorf("Expected upstream error, got %v", resp)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK || w.Body.String() != `"Hello, I am alive"` {
		t.Errorf("Service should keep answering after upstream failures, got %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := fakeModelServer(t, `{"predictions": [[0.1, 0.1, 0.7, 0.1]]}`)
	r := newRouter(t, srv.URL)

	upload(t, r, scanPNG(t))
	upload(t, r, []byte("garbage"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	out := w.Body.String()
	for _, want := range []string{
		`braintumor_predictions_total{class="no_tumor"} 1`,
		`braintumor_prediction_failures_total{stage="decode"} 1`,
		`http_requests_total{method="POST",path="/braintumor/predict",status="200"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestPing_OtherOrigin(t *testing.T) {
	r := newRouter(t, "http://127.0.0.1:1/v1/models/tumor_model:predict")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != `"`+handlers.PingMessage+`"` {
		t.Errorf("Unexpected ping body: %s", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow origin, got %q", got)
	}
}

func TestRecovery_LogsPanic(t *testing.T) {
	var logs bytes.Buffer
	r := newRouterLogging(t, "http://127.0.0.1:1/v1/models/tumor_model:predict", &logs)
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "req-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	out := logs.String()
	if !strings.Contains(out, `msg="panic recovered"`) || !strings.Contains(out, "error=boom") || !strings.Contains(out, "request_id=req-panic") {
		t.Errorf("Expected panic in structured log, got %q", out)
	}
	if !strings.Contains(out, "status=500") {
		t.Errorf("Expected access log of the 500, got %q", out)
	}

	pong := httptest.NewRecorder()
	r.ServeHTTP(pong, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if pong.Code != http.StatusOK {
		t.Errorf("Expected server to keep serving, got %d", pong.Code)
	}
}
