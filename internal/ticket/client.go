package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/models"
	"go.uber.org/zap"
)

// IssueRequest 签发请求体
// Ticket/Waktu仅在补报离线票时携带，服务端按票号去重。
type IssueRequest struct {
	Plate  string `json:"plat"`
	Kind   string `json:"jenis"`
	Ticket string `json:"tiket,omitempty"`
	Waktu  string `json:"waktu,omitempty"`
}

// IssueResponse 服务端响应体
type IssueResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Ticket string `json:"ticket"`
		Waktu  string `json:"waktu"`
	} `json:"data"`
}

// Client 远端票务服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient 创建票务服务客户端
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger.GetModuleLogger("issuer"),
	}
}

// Issue 向服务端请求签发入场票
// 网络错误会按配置重试；服务端明确拒绝（success=false或4xx）不重试。
func (c *Client) Issue(ctx context.Context, plate string, vehicle models.VehicleType) (string, time.Time, error) {
	return c.send(ctx, IssueRequest{
		Plate: plate,
		Kind:  vehicle.APIKind(),
	})
}

func (c *Client) send(ctx context.Context, request IssueRequest) (string, time.Time, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		ticketID, issuedAt, err := c.post(ctx, request)
		if err == nil {
			return ticketID, issuedAt, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return "", time.Time{}, err
		}
		c.logger.Warn("签发请求失败，准备重试",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", time.Time{}, lastErr
}

func (c *Client) post(ctx context.Context, request IssueRequest) (string, time.Time, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.ErrIssueFailed, "编码请求体失败")
	}

	url := c.baseURL + "/masuk"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.ErrIssueFailed, url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, c.classifyTransportError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", time.Time{}, errors.Newf(errors.ErrNetworkRefused,
			"服务端返回 %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", time.Time{}, errors.Newf(errors.ErrServerRejected,
			"服务端拒绝签发: %d", resp.StatusCode)
	}

	var parsed IssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.ErrMalformedResponse, url)
	}
	if !parsed.Success {
		return "", time.Time{}, errors.Newf(errors.ErrServerRejected,
			"服务端拒绝签发: %s", parsed.Message)
	}
	if parsed.Data.Ticket == "" {
		return "", time.Time{}, errors.New(errors.ErrMalformedResponse,
			"响应缺少ticket字段")
	}

	issuedAt := parseServerTime(parsed.Data.Waktu)
	return parsed.Data.Ticket, issuedAt, nil
}

// Sync 把离线票补报给服务端
// 离线票号和签发时间原样携带，服务端按票号去重：
// 已知票号的重复提交是无副作用的成功，因此可以直接作为
// 离线队列的同步端使用。
func (c *Client) Sync(ctx context.Context, tkt models.Ticket) error {
	_, _, err := c.send(ctx, IssueRequest{
		Plate:  tkt.Plate,
		Kind:   tkt.VehicleType.APIKind(),
		Ticket: tkt.TicketID,
		Waktu:  tkt.IssuedAt.Format("2006-01-02 15:04:05"),
	})
	return err
}

// classifyTransportError 把传输层错误映射到重试语义
func (c *Client) classifyTransportError(err error, url string) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(err, errors.ErrNetworkTimeout, url)
	}
	return errors.Wrap(err, errors.ErrNetworkRefused, url)
}

// parseServerTime 解析服务端时间戳，无法解析时回退到本地时间
func parseServerTime(waktu string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, waktu, time.Local); err == nil {
			return t
		}
	}
	return time.Now()
}
