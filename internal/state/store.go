package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// encodeList marshals a string slice for a TEXT column. Empty slices
// store as NULL-equivalent empty strings.
func encodeList(list []string) string {
	if len(list) == 0 {
		return ""
	}
	data, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeList unmarshals a TEXT column back into a slice.
func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// SaveParentTask inserts or updates a parent task.
func (db *DB) SaveParentTask(t *models.ParentTask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO parent_tasks (id, project_id, instruction, status, assigned_manager, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assigned_manager = excluded.assigned_manager,
			updated_at = excluded.updated_at`,
		t.ID, t.ProjectID, t.Instruction, string(t.Status), t.AssignedManager,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save parent task %s: %w", t.ID, err)
	}
	return nil
}

// GetParentTask loads one parent task.
func (db *DB) GetParentTask(id string) (*models.ParentTask, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, project_id, instruction, status, COALESCE(assigned_manager, ''), created_at, updated_at
		FROM parent_tasks WHERE id = ?`, id)

	var t models.ParentTask
	var status string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Instruction, &status, &t.AssignedManager, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get parent task %s: %w", id, err)
	}
	t.Status = models.ParentStatus(status)
	return &t, nil
}

// SaveSubTask inserts or updates a sub-task.
func (db *DB) SaveSubTask(t *models.SubTask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO sub_tasks (id, parent_id, title, description, acceptance_criteria,
			estimated_effort, dependencies, status, assignee, artifacts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assignee = excluded.assignee,
			artifacts = excluded.artifacts,
			updated_at = excluded.updated_at`,
		t.ID, t.ParentID, t.Title, t.Description, encodeList(t.AcceptanceCriteria),
		string(t.EstimatedEffort), encodeList(t.Dependencies), string(t.Status),
		t.Assignee, encodeList(t.Artifacts), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save sub-task %s: %w", t.ID, err)
	}
	return nil
}

// GetSubTasks loads every sub-task of a parent, in id order.
func (db *DB) GetSubTasks(parentID string) ([]*models.SubTask, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, parent_id, title, COALESCE(description, ''), COALESCE(acceptance_criteria, ''),
			COALESCE(estimated_effort, ''), COALESCE(dependencies, ''), status,
			COALESCE(assignee, ''), COALESCE(artifacts, ''), created_at, updated_at
		FROM sub_tasks WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("get sub-tasks of %s: %w", parentID, err)
	}
	defer rows.Close()

	var out []*models.SubTask
	for rows.Next() {
		var t models.SubTask
		var criteria, effort, deps, status, artifacts string
		if err := rows.Scan(&t.ID, &t.ParentID, &t.Title, &t.Description, &criteria,
			&effort, &deps, &status, &t.Assignee, &artifacts, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sub-task: %w", err)
		}
		t.AcceptanceCriteria = decodeList(criteria)
		t.EstimatedEffort = models.Effort(effort)
		t.Dependencies = decodeList(deps)
		t.Status = models.SubTaskStatus(status)
		t.Artifacts = decodeList(artifacts)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SaveWorker inserts or updates a worker record, terminated included.
func (db *DB) SaveWorker(w *models.WorkerInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var lastActivity interface{}
	if !w.LastActivity.IsZero() {
		lastActivity = w.LastActivity.UTC()
	}

	_, err := db.conn.Exec(`
		INSERT INTO workers (id, name, capabilities, status, hired_at, last_activity,
			completed_count, failed_count, consecutive_failures, health_score, priority, adapter, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_activity = excluded.last_activity,
			completed_count = excluded.completed_count,
			failed_count = excluded.failed_count,
			consecutive_failures = excluded.consecutive_failures,
			health_score = excluded.health_score,
			priority = excluded.priority`,
		w.ID, w.Name, encodeList(w.Capabilities), string(w.Status), w.HiredAt.UTC(), lastActivity,
		w.CompletedCount, w.FailedCount, w.ConsecutiveFailures, w.HealthScore, w.Priority,
		w.Adapter, w.Model)
	if err != nil {
		return fmt.Errorf("save worker %s: %w", w.ID, err)
	}
	return nil
}

// GetWorkers loads every worker record, oldest hire first.
func (db *DB) GetWorkers() ([]*models.WorkerInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, name, COALESCE(capabilities, ''), status, hired_at, last_activity,
			completed_count, failed_count, consecutive_failures, health_score, priority,
			COALESCE(adapter, ''), COALESCE(model, '')
		FROM workers ORDER BY hired_at`)
	if err != nil {
		return nil, fmt.Errorf("get workers: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkerInfo
	for rows.Next() {
		var w models.WorkerInfo
		var caps, status string
		var lastActivity sql.NullTime
		if err := rows.Scan(&w.ID, &w.Name, &caps, &status, &w.HiredAt, &lastActivity,
			&w.CompletedCount, &w.FailedCount, &w.ConsecutiveFailures, &w.HealthScore,
			&w.Priority, &w.Adapter, &w.Model); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		w.Capabilities = decodeList(caps)
		w.Status = models.WorkerStatus(status)
		if lastActivity.Valid {
			w.LastActivity = lastActivity.Time
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// SavePullRequest inserts or updates a pull request record.
func (db *DB) SavePullRequest(pr *models.PullRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO pull_requests (id, title, description, source_branch, target_branch,
			ticket_id, status, changed_files, commit_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			changed_files = excluded.changed_files,
			commit_count = excluded.commit_count`,
		pr.ID, pr.Title, pr.Description, pr.SourceBranch, pr.TargetBranch,
		pr.TicketID, string(pr.Status), encodeList(pr.ChangedFiles), pr.CommitCount,
		pr.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save pull request %s: %w", pr.ID, err)
	}
	return nil
}

// GetPullRequest loads one pull request.
func (db *DB) GetPullRequest(id string) (*models.PullRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, title, COALESCE(description, ''), source_branch, target_branch,
			COALESCE(ticket_id, ''), status, COALESCE(changed_files, ''), commit_count, created_at
		FROM pull_requests WHERE id = ?`, id)

	var pr models.PullRequest
	var status, files string
	if err := row.Scan(&pr.ID, &pr.Title, &pr.Description, &pr.SourceBranch, &pr.TargetBranch,
		&pr.TicketID, &status, &files, &pr.CommitCount, &pr.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pull request %s: %w", id, err)
	}
	pr.Status = models.PRStatus(status)
	pr.ChangedFiles = decodeList(files)
	return &pr, nil
}

// PruneTerminatedWorkers deletes terminated workers whose last activity is
// older than the retention window.
func (db *DB) PruneTerminatedWorkers(retention time.Duration) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	res, err := db.conn.Exec(`
		DELETE FROM workers WHERE status = 'terminated' AND last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune workers: %w", err)
	}
	return res.RowsAffected()
}
