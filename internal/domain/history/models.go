// Package history 定义项目执行历史的核心领域模型
// 所有记录均为不可变值对象；TaskHistory/AgentHistory/ProjectHistory 为派生聚合
package history

import "time"

// 任务状态
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusBlocked    = "blocked"
	// TaskStatusUnknown 占位任务状态：决策/产物引用了会话中未出现的任务
	TaskStatusUnknown = "unknown"
)

// 消息方向
const (
	// DirectionToPM 代理发往协调者
	DirectionToPM = "to_pm"
	// DirectionFromPM 协调者发往代理
	DirectionFromPM = "from_pm"
)

// 代理事件类型
const (
	EventTaskAssigned  = "task_assigned"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskBlocked   = "task_blocked"
	EventTaskFailed    = "task_failed"
)

// Decision 架构决策记录
// ProjectID 仅作调试参考（advisory）：任务到项目的权威映射
// 只能通过会话消息元数据中的 (project_id, task_id) 推导
type Decision struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	AgentID       string    `json:"agent_id"`
	Timestamp     time.Time `json:"timestamp"`
	What          string    `json:"what"`
	Why           string    `json:"why"`
	Impact        string    `json:"impact"`
	AffectedTasks []string  `json:"affected_tasks"`
	Confidence    float64   `json:"confidence"` // 0-1
	SourceRef     string    `json:"source_ref,omitempty"`
	ProjectID     string    `json:"project_id,omitempty"` // advisory
}

// ArtifactMetadata 产物元数据
// ProjectID 同样仅作调试参考
type ArtifactMetadata struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	AgentID      string    `json:"agent_id"`
	Timestamp    time.Time `json:"timestamp"`
	Filename     string    `json:"filename"`
	ArtifactType string    `json:"artifact_type"`
	RelativePath string    `json:"relative_path"`
	AbsolutePath string    `json:"absolute_path,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentHash  string    `json:"content_hash,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"` // advisory
	ConsumedBy   []string  `json:"consumed_by"`
}

// ProjectOutcome 项目最终结果判定
type ProjectOutcome struct {
	Works        bool    `json:"works"`
	DeployStatus string  `json:"deploy_status"`
	Satisfaction float64 `json:"satisfaction"` // 0-1
}

// ProjectSnapshot 项目终态快照（每个项目唯一，保存时整体覆盖）
type ProjectSnapshot struct {
	ProjectID      string         `json:"project_id"`
	ProjectName    string         `json:"project_name"`
	CompletedAt    time.Time      `json:"completed_at"`
	TaskCounts     map[string]int `json:"task_counts"` // 状态 -> 数量
	EstimatedHours float64        `json:"estimated_hours"`
	ActualHours    float64        `json:"actual_hours"`
	DurationHours  float64        `json:"duration_hours"`
	TeamSummary    string         `json:"team_summary"`
	RiskScore      float64        `json:"risk_score"`
	Velocity       float64        `json:"velocity"`
	Technologies   []string       `json:"technologies"`
	Outcome        ProjectOutcome `json:"outcome"`
}

// Message 一条会话消息
// Metadata 是任务/项目关联的唯一可靠来源（project_id / task_id / instructions）
type Message struct {
	Timestamp time.Time              `json:"timestamp"`
	Direction string                 `json:"direction"`
	AgentID   string                 `json:"agent_id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MetaString 读取元数据中的字符串字段
func (m *Message) MetaString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ProjectID 消息所属项目（来自元数据）
func (m *Message) ProjectID() string { return m.MetaString("project_id") }

// TaskID 消息关联任务（来自元数据，可能为空）
func (m *Message) TaskID() string { return m.MetaString("task_id") }

// Instructions 消息携带的任务指令（来自元数据，可能为空）
func (m *Message) Instructions() string { return m.MetaString("instructions") }

// TimelineEvent 全局时间线上的归一化事件
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"` // decision / artifact / 代理事件类型
	TaskID      string    `json:"task_id,omitempty"`
	AgentID     string    `json:"agent_id,omitempty"`
	Description string    `json:"description"`
	RefID       string    `json:"ref_id,omitempty"` // 指向决策/产物/事件记录的 ID
}

// AgentEvent 事件存储中的原始代理事件
type AgentEvent struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	TaskID    string                 `json:"task_id"`
	AgentID   string                 `json:"agent_id"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// TaskOutcome 结果存储中的任务结果记录
// 注意：结果记录不携带项目 ID，必须按会话推导的任务集合过滤
type TaskOutcome struct {
	TaskID         string     `json:"task_id"`
	TaskName       string     `json:"task_name"`
	AgentID        string     `json:"agent_id"`
	Status         string     `json:"status"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Dependencies   []string   `json:"dependencies"`
	Blockers       []string   `json:"blockers"`
	Summary        string     `json:"summary"`
	Works          bool       `json:"works"`
}

// AgentProfile 代理的长期绩效档案
type AgentProfile struct {
	AgentID        string    `json:"agent_id"`
	TasksCompleted int       `json:"tasks_completed"`
	TasksBlocked   int       `json:"tasks_blocked"`
	TotalHours     float64   `json:"total_hours"`
	AverageHours   float64   `json:"average_hours"`
	SuccessRate    float64   `json:"success_rate"`
	LastActive     time.Time `json:"last_active"`
}

// TaskHistory 单个任务的派生聚合
type TaskHistory struct {
	TaskID         string             `json:"task_id"`
	TaskName       string             `json:"task_name"`
	Status         string             `json:"status"`
	AgentID        string             `json:"agent_id"`
	EstimatedHours float64            `json:"estimated_hours"`
	ActualHours    float64            `json:"actual_hours"`
	AssignedAt     *time.Time         `json:"assigned_at,omitempty"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	Instructions   string             `json:"instructions"`
	Dependencies   []string           `json:"dependencies"`
	Decisions      []Decision         `json:"decisions"`
	Artifacts      []ArtifactMetadata `json:"artifacts"`
	ArtifactsUsed  []ArtifactMetadata `json:"artifacts_used"`
	Conversation   []Message          `json:"conversation"`
	Blockers       []string           `json:"blockers"`
	Outcome        *TaskOutcome       `json:"outcome,omitempty"`
}

// DurationSeconds 任务实际执行时长（秒）
// 优先使用开始/完成时间戳，缺失时回退到 actualHours*3600
func (t *TaskHistory) DurationSeconds() float64 {
	if t.StartedAt != nil && t.CompletedAt != nil {
		return t.CompletedAt.Sub(*t.StartedAt).Seconds()
	}
	return t.ActualHours * 3600
}

// AgentHistory 单个代理的派生聚合
type AgentHistory struct {
	AgentID           string        `json:"agent_id"`
	TasksCompleted    int           `json:"tasks_completed"`
	TasksBlocked      int           `json:"tasks_blocked"`
	TotalHours        float64       `json:"total_hours"`
	DecisionsMade     int           `json:"decisions_made"`
	ArtifactsProduced int           `json:"artifacts_produced"`
	Profile           *AgentProfile `json:"profile,omitempty"`
}

// ProjectHistory 调和后的完整项目历史
type ProjectHistory struct {
	ProjectID    string                   `json:"project_id"`
	ProjectName  string                   `json:"project_name"`
	Snapshot     *ProjectSnapshot         `json:"snapshot,omitempty"`
	Tasks        map[string]*TaskHistory  `json:"tasks"`
	Agents       map[string]*AgentHistory `json:"agents"`
	Timeline     []TimelineEvent          `json:"timeline"`
	Decisions    []Decision               `json:"decisions"`
	Artifacts    []ArtifactMetadata       `json:"artifacts"`
	AggregatedAt time.Time                `json:"aggregated_at"`
}

// FailedTasks 状态为 failed 的任务列表
func (p *ProjectHistory) FailedTasks() []*TaskHistory {
	var failed []*TaskHistory
	for _, task := range p.Tasks {
		if task.Status == TaskStatusFailed {
			failed = append(failed, task)
		}
	}
	return failed
}
