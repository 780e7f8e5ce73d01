package marketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mintpilot/internal/decision"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("构建客户端失败: %v", err)
	}
	return c, srv
}

func TestGetMetrics(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/marketing/metrics" || r.Method != http.MethodGet {
			t.Errorf("请求不符: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"metrics":[{"platform":"twitter","followers":9000,"engagement":0.05}]}`))
	}))

	metrics, err := c.GetMetrics(context.Background())
	if err != nil {
		t.Fatalf("拉取失败: %v", err)
	}
	if len(metrics) != 1 || metrics[0].Platform != "twitter" || metrics[0].Followers != 9000 {
		t.Fatalf("指标不符: %+v", metrics)
	}
}

func TestAllocatePostsOneEntry(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/marketing/allocate" || r.Method != http.MethodPost {
			t.Errorf("请求不符: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("请求体不是 JSON: %v", err)
		}
		if body["platform"] != "telegram" {
			t.Errorf("platform 不符: %v", body["platform"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"campaign_id":"c-42","status":"accepted"}`))
	}))

	res, err := c.Allocate(context.Background(), decision.Allocation{Platform: "telegram", Budget: 33.333, Focus: "ama"})
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	if res.CampaignID != "c-42" {
		t.Fatalf("回执不符: %+v", res)
	}
}

func TestAllocateServerError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if _, err := c.Allocate(context.Background(), decision.Allocation{Platform: "x", Budget: 1}); err == nil {
		t.Fatal("5xx 应返回错误")
	}
}

func TestTrack(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/marketing/track" {
			t.Errorf("路径不符: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))

	plan := decision.AllocationPlan{
		Allocations: []decision.Allocation{{Platform: "twitter", Budget: 10, Focus: "threads"}},
		Reasoning:   "test",
		Confidence:  0.8,
	}
	if err := c.Track(context.Background(), "trace-1", plan); err != nil {
		t.Fatalf("上报失败: %v", err)
	}
	if got["trace_id"] != "trace-1" {
		t.Fatalf("trace_id 不符: %v", got["trace_id"])
	}
}

func TestPauseCampaign(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/marketing/campaigns/c-7/pause" {
			t.Errorf("路径不符: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	if err := c.PauseCampaign(context.Background(), "c-7"); err != nil {
		t.Fatalf("暂停失败: %v", err)
	}
	if err := c.PauseCampaign(context.Background(), " "); err == nil {
		t.Fatal("空 campaign id 应报错")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("缺少 base url 应报错")
	}
}

func TestSplitEvenly(t *testing.T) {
	out := SplitEvenly(100, []string{"a", "b", "c"})
	if len(out) != 3 {
		t.Fatalf("应有 3 条: %v", out)
	}
	var total float64
	for _, a := range out {
		total += a.Budget
	}
	if total != 100 {
		t.Fatalf("尾差处理后总额应为 100: %f", total)
	}
	if SplitEvenly(0, []string{"a"}) != nil {
		t.Fatal("零预算应返回 nil")
	}
}
