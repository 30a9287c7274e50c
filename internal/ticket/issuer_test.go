package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/models"
)

type fakeQueue struct {
	entries []models.Ticket
	err     error
}

func (q *fakeQueue) Enqueue(ticket models.Ticket) error {
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, ticket)
	return nil
}

func newTestIssuer(t *testing.T, serverURL string, queue Enqueuer) *Issuer {
	t.Helper()
	counter := NewCounter(filepath.Join(t.TempDir(), "counter.txt"))
	client := NewClient(serverURL, 2*time.Second, 0)
	return NewIssuer(client, counter, queue, nil, IssuerOptions{GateID: "gate-1"})
}

func TestIssueOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/masuk", r.URL.Path)
		var req IssueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "B1234XYZ", req.Plate)
		assert.Equal(t, "Mobil", req.Kind)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]string{
				"ticket": "TKT20240301-0001",
				"waktu":  "2024-03-01 08:15:00",
			},
		})
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	ticket, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, "TKT20240301-0001", ticket.TicketID)
	assert.Equal(t, models.OriginServer, ticket.Origin)
	assert.True(t, ticket.Synced)
	assert.Empty(t, queue.entries, "在线签发不应入离线队列")
	assert.Equal(t, 8, ticket.IssuedAt.Hour())
}

// 远端不可达时回退离线签发并入队
func TestIssueOfflineFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立刻关掉端口模拟断网

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	first, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, "OFF000001", first.TicketID)
	assert.Equal(t, models.OriginOffline, first.Origin)
	assert.False(t, first.Synced)

	second, err := issuer.Issue(context.Background(), "D5678AB", models.VehicleMotorcycle)
	require.NoError(t, err)
	assert.Equal(t, "OFF000002", second.TicketID)

	require.Len(t, queue.entries, 2)
	assert.Equal(t, "OFF000001", queue.entries[0].TicketID)
	assert.Equal(t, "OFF000002", queue.entries[1].TicketID)
}

// 服务端明确拒绝同样回退离线签发，闸口不能把车拦下
func TestIssueServerRejectionFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "plat sudah terdaftar",
		})
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	ticket, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, "OFF000001", ticket.TicketID)
	assert.Equal(t, models.OriginOffline, ticket.Origin)
	require.Len(t, queue.entries, 1)
}

// 网关吐HTML等无法解析的响应也回退离线签发
func TestIssueMalformedResponseFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	ticket, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, "OFF000001", ticket.TicketID)
	assert.Equal(t, models.OriginOffline, ticket.Origin)
	require.Len(t, queue.entries, 1)
}

// 404等客户端错误同样回退离线签发
func TestIssueClientErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	ticket, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, "OFF000001", ticket.TicketID)
	assert.Equal(t, models.OriginOffline, ticket.Origin)
	require.Len(t, queue.entries, 1)
}

func TestIssueServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	ticket, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, models.OriginOffline, ticket.Origin)
	require.Len(t, queue.entries, 1)
}

// 补报离线票时票号与签发时间必须原样携带，供服务端按票号去重
func TestSyncCarriesOfflineTicketID(t *testing.T) {
	var got IssueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]string{
				"ticket": got.Ticket,
				"waktu":  got.Waktu,
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api", 2*time.Second, 0)
	err := client.Sync(context.Background(), models.Ticket{
		TicketID:    "OFF000007",
		Plate:       "D5678AB",
		VehicleType: models.VehicleMotorcycle,
		IssuedAt:    time.Date(2024, 3, 1, 8, 15, 0, 0, time.Local),
	})
	require.NoError(t, err)
	assert.Equal(t, "OFF000007", got.Ticket)
	assert.Equal(t, "2024-03-01 08:15:00", got.Waktu)
	assert.Equal(t, "Motor", got.Kind)
	assert.Equal(t, "D5678AB", got.Plate)
}

// 入队失败时签发必须失败，不能返回未持久化的离线票
func TestIssueOfflineEnqueueFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	queue := &fakeQueue{err: errors.New(errors.ErrQueueWrite, "disk full")}
	issuer := newTestIssuer(t, srv.URL+"/api", queue)

	_, err := issuer.Issue(context.Background(), "B1234XYZ", models.VehicleCar)
	require.Error(t, err)
	assert.Equal(t, errors.ErrQueueWrite, errors.GetCode(err))
}
