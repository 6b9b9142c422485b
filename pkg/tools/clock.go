package tools

import (
	"context"
	"encoding/json"
	"time"
)

// TimeTool reports the current wall-clock time.
type TimeTool struct {
	now func() time.Time
}

func NewTimeTool() *TimeTool {
	return &TimeTool{now: time.Now}
}

func (t *TimeTool) GetName() string {
	return "get_current_time"
}

func (t *TimeTool) GetDescription() string {
	return "Get the current date and time"
}

func (t *TimeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "get_current_time",
		Description: "Get the current date and time. Takes no parameters.",
	}
}

type timeResult struct {
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Day       string `json:"day"`
	Message   string `json:"message"`
}

func (t *TimeTool) Execute(_ context.Context, _ map[string]interface{}) (string, error) {
	now := t.now()

	out, err := json.Marshal(timeResult{
		Timestamp: now.Format(time.RFC3339),
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Day:       now.Format("Monday"),
		Message:   now.Format("It is 15:04 on Monday, January 2, 2006."),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
