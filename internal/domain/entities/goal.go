package entities

import "time"

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      GoalStatus `json:"status"`
	TargetDate  *string    `json:"targetDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// GoalDetail is a goal with its regions and their tasks, as shown on the
// goal page.
type GoalDetail struct {
	Goal
	Regions []RegionDetail `json:"regions"`
}

type Region struct {
	ID          string    `json:"id"`
	GoalID      string    `json:"goalId"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type RegionDetail struct {
	Region
	Tasks []Task `json:"tasks"`
}

type Task struct {
	ID          string    `json:"id"`
	RegionID    string    `json:"regionId"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ActivityEntry is one persisted log event attributed to a user.
type ActivityEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	EventCode string         `json:"eventCode"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
