package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahmed11551/tasbih/internal/adapters/http/api"
	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/app"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// newTestServer spins up the full service behind httptest so handlers
// are exercised end to end against the in-memory store.
func newTestServer(ctx context.Context, t *testing.T, store repository.Store) *httptest.Server {
	t.Helper()

	svc := app.New(app.WithStore(store), app.WithWorkerCount(1))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, user string, body any) (int, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func TestCountingEndpoints(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running API server", t, func() {
		store := repository.NewMemStore()
		So(store.PutUser(ctx, model.User{ID: "u1", Locale: "ar", Timezone: "Asia/Dubai"}), ShouldBeNil)
		ts := newTestServer(ctx, t, store)

		Convey("When a goal is created and a session started", func() {
			status, goal := doJSON(t, ts, http.MethodPost, "/goals", "u1", map[string]any{
				"category": "dhikr", "item_id": "subhanallah", "kind": "recite", "target_count": 3,
			})
			So(status, ShouldEqual, http.StatusOK)
			goalID, _ := goal["id"].(string)
			So(goalID, ShouldNotBeEmpty)

			status, sess := doJSON(t, ts, http.MethodPost, "/sessions/start", "u1", map[string]any{
				"goal_id": goalID, "category": "dhikr", "segment": "fajr",
			})
			So(status, ShouldEqual, http.StatusOK)
			sessID, _ := sess["id"].(string)
			So(sessID, ShouldNotBeEmpty)

			Convey("Then taps drive the goal to completion exactly once", func() {
				var tap map[string]any
				for i := 0; i < 3; i++ {
					status, tap = doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", map[string]any{
						"session_id": sessID, "delta": 1,
					})
					So(status, ShouldEqual, http.StatusOK)
				}
				g, _ := tap["goal"].(map[string]any)
				So(g["is_completed"], ShouldEqual, true)
				So(g["completed_now"], ShouldEqual, true)

				status, tap = doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", map[string]any{
					"session_id": sessID, "delta": 1,
				})
				So(status, ShouldEqual, http.StatusOK)
				g, _ = tap["goal"].(map[string]any)
				So(g["completed_now"], ShouldEqual, false)
			})

			Convey("And bootstrap returns the client payload", func() {
				status, boot := doJSON(t, ts, http.MethodGet, "/bootstrap", "u1", nil)
				So(status, ShouldEqual, http.StatusOK)
				user, _ := boot["user"].(map[string]any)
				So(user["id"], ShouldEqual, "u1")
				So(boot["today_bucket"], ShouldNotBeNil)
			})

			Convey("And the daily report keeps hourly activity consistent", func() {
				status, _ = doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", map[string]any{
					"session_id": sessID, "delta": 2,
				})
				So(status, ShouldEqual, http.StatusOK)

				status, daily := doJSON(t, ts, http.MethodGet, "/reports/daily", "u1", nil)
				So(status, ShouldEqual, http.StatusOK)
				So(daily["timezone"], ShouldEqual, "Asia/Dubai")
				So(daily["total_dhikr_count"], ShouldEqual, float64(2))

				hours, _ := daily["hourly_activity"].([]any)
				So(hours, ShouldHaveLength, 24)
				sum := 0.0
				for _, h := range hours {
					sum += h.(float64)
				}
				So(sum, ShouldEqual, 2.0)
			})

			Convey("And a live tap reusing an offline id conflicts", func() {
				body := map[string]any{"session_id": sessID, "delta": 1, "offline_id": "dup-1"}

				status, _ := doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", body)
				So(status, ShouldEqual, http.StatusOK)

				status, errBody := doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", body)
				So(status, ShouldEqual, http.StatusConflict)
				So(errBody["code"], ShouldEqual, "duplicate")
			})

			Convey("And an offline batch replays idempotently", func() {
				batch := map[string]any{"events": []map[string]any{
					{"offline_id": "off-1", "session_id": sessID, "event_type": "tap", "delta": 1},
				}}

				status, first := doJSON(t, ts, http.MethodPost, "/sync/offline", "u1", batch)
				So(status, ShouldEqual, http.StatusOK)
				results, _ := first["results"].([]any)
				So(results, ShouldHaveLength, 1)
				So(results[0].(map[string]any)["status"], ShouldEqual, "synced")

				status, second := doJSON(t, ts, http.MethodPost, "/sync/offline", "u1", batch)
				So(status, ShouldEqual, http.StatusOK)
				results, _ = second["results"].([]any)
				So(results[0].(map[string]any)["status"], ShouldEqual, "already_synced")
			})

			Convey("And marking a learn goal works through /learn/mark", func() {
				status, lg := doJSON(t, ts, http.MethodPost, "/goals", "u1", map[string]any{
					"category": "quran", "item_id": "al-fatiha", "kind": "learn", "target_count": 1,
				})
				So(status, ShouldEqual, http.StatusOK)

				status, marked := doJSON(t, ts, http.MethodPost, "/learn/mark", "u1", map[string]any{
					"goal_id": lg["id"],
				})
				So(status, ShouldEqual, http.StatusOK)
				So(marked["is_completed"], ShouldEqual, true)
			})
		})

		Convey("When requests are malformed", func() {
			Convey("Then a missing identity header is a 400", func() {
				status, body := doJSON(t, ts, http.MethodGet, "/bootstrap", "", nil)
				So(status, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "bad_request")
			})

			Convey("Then an unknown session taps a 404", func() {
				status, body := doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", map[string]any{
					"session_id": "ghost", "delta": 1,
				})
				So(status, ShouldEqual, http.StatusNotFound)
				So(body["code"], ShouldEqual, "not_found")
			})

			Convey("Then a zero delta is rejected", func() {
				status, _ := doJSON(t, ts, http.MethodPost, "/counter/tap", "u1", map[string]any{
					"session_id": "s1", "delta": 0,
				})
				So(status, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then a goal with a bad kind is rejected", func() {
				status, _ := doJSON(t, ts, http.MethodPost, "/goals", "u1", map[string]any{
					"category": "dhikr", "kind": "absorb", "target_count": 3,
				})
				So(status, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then an empty offline batch is rejected", func() {
				status, _ := doJSON(t, ts, http.MethodPost, "/sync/offline", "u1", map[string]any{
					"events": []map[string]any{},
				})
				So(status, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then the wrong method is a 404", func() {
				status, _ := doJSON(t, ts, http.MethodDelete, "/counter/tap", "u1", nil)
				So(status, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then bootstrap for an unknown user is a 404", func() {
				status, body := doJSON(t, ts, http.MethodGet, "/bootstrap", "ghost", nil)
				So(status, ShouldEqual, http.StatusNotFound)
				So(body["code"], ShouldEqual, "not_found")
			})
		})
	})
}

func TestWebhookEndpoint(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running API server", t, func() {
		ts := newTestServer(ctx, t, repository.NewMemStore())

		Convey("When a calculation notification arrives", func() {
			payload := map[string]any{"job_id": "job-1", "event": "calculation.completed"}

			status, body := doJSON(t, ts, http.MethodPost, "/webhooks/calculation", "", payload)

			Convey("Then it is acknowledged as accepted", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "accepted")
			})

			Convey("And the retry of the same event is a duplicate, still 200", func() {
				status, body = doJSON(t, ts, http.MethodPost, "/webhooks/calculation", "", payload)
				So(status, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "duplicate")
			})

			Convey("And an unknown event type is still acknowledged", func() {
				status, body = doJSON(t, ts, http.MethodPost, "/webhooks/calculation", "", map[string]any{
					"job_id": "job-1", "event": "calculation.paused",
				})
				So(status, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "accepted")
			})
		})

		Convey("When the notification is missing its job id", func() {
			status, body := doJSON(t, ts, http.MethodPost, "/webhooks/calculation", "", map[string]any{
				"event": "calculation.completed",
			})

			Convey("Then it is rejected outright", func() {
				So(status, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "bad_request")
			})
		})
	})
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running API server with traffic", t, func() {
		store := repository.NewMemStore()
		So(store.PutUser(ctx, model.User{ID: "u1", Timezone: "UTC"}), ShouldBeNil)
		ts := newTestServer(ctx, t, store)

		for i := 0; i < 3; i++ {
			status, _ := doJSON(t, ts, http.MethodGet, "/bootstrap", "u1", nil)
			So(status, ShouldEqual, http.StatusOK)
		}

		Convey("When latency stats are requested", func() {
			status, body := doJSON(t, ts, http.MethodGet, "/metrics?endpoint=bootstrap&window_minutes=5", "", nil)

			Convey("Then bootstrap samples are aggregated", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body["window_minutes"], ShouldEqual, float64(5))

				stats, _ := body["stats"].([]any)
				So(stats, ShouldHaveLength, 1)
				entry := stats[0].(map[string]any)
				So(entry["endpoint"], ShouldEqual, "bootstrap")
				So(entry["count"], ShouldEqual, float64(3))
			})
		})

		Convey("When the stats window is garbage", func() {
			status, _ := doJSON(t, ts, http.MethodGet, "/metrics?window_minutes=soon", "", nil)

			Convey("Then the request is rejected", func() {
				So(status, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When health is probed", func() {
			resp, err := ts.Client().Get(ts.URL + "/healthz")

			Convey("Then the Prometheus exposition answers", func() {
				So(err, ShouldBeNil)
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				raw, readErr := io.ReadAll(resp.Body)
				So(readErr, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "tasbih")
			})
		})
	})
}
