package report

import (
	"context"
	"fmt"
	"time"

	"ImagenetConsole/console"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const TimeOutSeconds = 5

type Request struct {
	Id         string  `json:"id"`
	Image      string  `json:"image"`
	ClassIndex int     `json:"classIndex"`
	Confidence float32 `json:"confidence"`
	Label      string  `json:"label"`
	Success    bool    `json:"success"`
	TimeStamp  int64   `json:"timestamp"`
}

type Response struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type Reporter struct {
	url    string
	runID  string
	client *resty.Client
}

// New 每次运行生成一个 uuid 作为上报 ID
func New(url string, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = TimeOutSeconds * time.Second
	}
	return &Reporter{
		url:    url,
		runID:  uuid.NewString(),
		client: resty.New().SetTimeout(timeout),
	}
}

func (r *Reporter) RunID() string {
	return r.runID
}

func (r *Reporter) Send(ctx context.Context, res console.Result) error {
	var respBody Response
	reqBody := Request{
		Id:         r.runID,
		Image:      res.Image,
		ClassIndex: res.ClassIndex,
		Label:      res.Label,
		Success:    res.ClassIndex >= 0,
		TimeStamp:  time.Now().Unix(),
	}
	// 索引为负时置信度无意义，不上报
	if reqBody.Success {
		reqBody.Confidence = res.Confidence
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody).
		Post(r.url)
	if err != nil {
		return fmt.Errorf("report request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("collector returned %s: %s", resp.Status(), resp.String())
	}
	if respBody.Id != "" && respBody.Id != r.runID {
		return fmt.Errorf("collector acknowledged id %s, expected %s", respBody.Id, r.runID)
	}
	return nil
}
