package event

const GradingCompletedTopic = "grading_completed"

// GradingCompletedEvent 一次批改完成后的广播，统计侧消费。
type GradingCompletedEvent struct {
	TaskID    string `json:"taskId"`
	Uid       int64  `json:"uid"`
	Mode      string `json:"mode"`
	CharCount int    `json:"charCount"`
	AvgScore  int    `json:"avgScore"`
}
