package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// Array columns are NOT NULL, so nil slices are written as empty ones.
func ids(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func profileIDs(v []uuid.UUID) []uuid.UUID {
	if v == nil {
		return []uuid.UUID{}
	}
	return v
}

// Tags

const tagSelect = `
	SELECT t.id, t.name, t.created_at,
		(SELECT count(*) FROM proposals p WHERE t.id = ANY(p.tag_ids)) +
		(SELECT count(*) FROM tasks k WHERE t.id = ANY(k.tag_ids))
	FROM tags t`

func scanTag(row pgx.Row) (models.Tag, error) {
	var tag models.Tag
	err := row.Scan(&tag.ID, &tag.Name, &tag.CreatedAt, &tag.UseCount)
	return tag, err
}

func (t *tx) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := t.tx.Query(ctx, tagSelect+` ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTag)
}

func (t *tx) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	tag, err := scanTag(t.tx.QueryRow(ctx, tagSelect+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "tag")
	}
	return &tag, nil
}

func (t *tx) SaveTag(ctx context.Context, tag *models.Tag) error {
	if tag.ID == 0 {
		err := t.tx.QueryRow(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id, created_at`, tag.Name).
			Scan(&tag.ID, &tag.CreatedAt)
		return mapErr(err, "tag")
	}
	err := t.tx.QueryRow(ctx, `UPDATE tags SET name = $2 WHERE id = $1 RETURNING created_at`, tag.ID, tag.Name).
		Scan(&tag.CreatedAt)
	return mapErr(err, "tag")
}

// DeleteTag removes the tag and strips it from every proposal and task.
func (t *tx) DeleteTag(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err := removed(tag, err, "tag"); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `UPDATE proposals SET tag_ids = array_remove(tag_ids, $1) WHERE $1 = ANY(tag_ids)`, id); err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `UPDATE tasks SET tag_ids = array_remove(tag_ids, $1) WHERE $1 = ANY(tag_ids)`, id)
	return err
}

// Proposals

const proposalColumns = `id, creator_id, status, text, is_private, tag_ids, favorited_by, created_at`

func scanProposal(row pgx.Row) (models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(&p.ID, &p.CreatorID, &p.Status, &p.Text, &p.IsPrivate, &p.TagIDs, &p.FavoritedBy, &p.CreatedAt)
	return p, err
}

func (t *tx) ListProposals(ctx context.Context, q store.VisibilityQuery) ([]models.Proposal, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+proposalColumns+` FROM proposals
		WHERE $1 OR NOT is_private
		ORDER BY id`, q.IncludePrivate)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProposal)
}

func (t *tx) GetProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	p, err := scanProposal(t.tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "proposal")
	}
	return &p, nil
}

func (t *tx) SaveProposal(ctx context.Context, p *models.Proposal) error {
	args := []any{p.CreatorID, p.Status, p.Text, p.IsPrivate, ids(p.TagIDs), profileIDs(p.FavoritedBy)}
	if p.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO proposals (creator_id, status, text, is_private, tag_ids, favorited_by)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
			args...).Scan(&p.ID, &p.CreatedAt)
		return mapErr(err, "proposal")
	}
	err := t.tx.QueryRow(ctx, `
		UPDATE proposals SET creator_id = $1, status = $2, text = $3, is_private = $4,
			tag_ids = $5, favorited_by = $6
		WHERE id = $7 RETURNING created_at`,
		append(args, p.ID)...).Scan(&p.CreatedAt)
	return mapErr(err, "proposal")
}

func (t *tx) DeleteProposal(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	return removed(tag, err, "proposal")
}

// Tasks

const taskColumns = `id, title, description, state, complexity, priority, is_private, notes,
	tag_ids, assigned_admins, favorited_by, depends_on, created_at`

func scanTask(row pgx.Row) (models.Task, error) {
	var k models.Task
	err := row.Scan(&k.ID, &k.Title, &k.Description, &k.State, &k.Complexity, &k.Priority, &k.IsPrivate,
		&k.Notes, &k.TagIDs, &k.AssignedAdmins, &k.FavoritedBy, &k.DependsOn, &k.CreatedAt)
	return k, err
}

func (t *tx) ListTasks(ctx context.Context, q store.VisibilityQuery) ([]models.Task, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE $1 OR NOT is_private
		ORDER BY id`, q.IncludePrivate)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

func (t *tx) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	k, err := scanTask(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "task")
	}
	return &k, nil
}

// SaveTask rejects dependencies on tasks that do not exist.
func (t *tx) SaveTask(ctx context.Context, k *models.Task) error {
	var missing int64
	err := t.tx.QueryRow(ctx, `
		SELECT d FROM unnest($1::bigint[]) AS d
		WHERE d <> $2 AND NOT EXISTS (SELECT 1 FROM tasks WHERE id = d)
		LIMIT 1`, ids(k.DependsOn), k.ID).Scan(&missing)
	switch {
	case err == nil:
		return apperr.NotFound("task %d not found", missing)
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	args := []any{k.Title, k.Description, k.State, k.Complexity, k.Priority, k.IsPrivate, k.Notes,
		ids(k.TagIDs), profileIDs(k.AssignedAdmins), profileIDs(k.FavoritedBy), ids(k.DependsOn)}
	if k.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO tasks (title, description, state, complexity, priority, is_private, notes,
				tag_ids, assigned_admins, favorited_by, depends_on)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id, created_at`,
			args...).Scan(&k.ID, &k.CreatedAt)
		return mapErr(err, "task")
	}
	err = t.tx.QueryRow(ctx, `
		UPDATE tasks SET title = $1, description = $2, state = $3, complexity = $4, priority = $5,
			is_private = $6, notes = $7, tag_ids = $8, assigned_admins = $9, favorited_by = $10,
			depends_on = $11
		WHERE id = $12 RETURNING created_at`,
		append(args, k.ID)...).Scan(&k.CreatedAt)
	return mapErr(err, "task")
}

// DeleteTask removes the task, its sub-tasks by cascade, and every edge into it.
func (t *tx) DeleteTask(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err := removed(tag, err, "task"); err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `UPDATE tasks SET depends_on = array_remove(depends_on, $1) WHERE $1 = ANY(depends_on)`, id)
	return err
}

func (t *tx) TaskDependencies(ctx context.Context) (map[int64][]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, depends_on FROM tasks WHERE cardinality(depends_on) > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := make(map[int64][]int64)
	for rows.Next() {
		var id int64
		var deps []int64
		if err := rows.Scan(&id, &deps); err != nil {
			return nil, err
		}
		edges[id] = deps
	}
	return edges, rows.Err()
}

// Sub-tasks

const subTaskColumns = `id, task_id, title, description, state, complexity, priority, is_private,
	notes, assigned_admins, created_at`

func scanSubTask(row pgx.Row) (models.SubTask, error) {
	var s models.SubTask
	err := row.Scan(&s.ID, &s.TaskID, &s.Title, &s.Description, &s.State, &s.Complexity, &s.Priority,
		&s.IsPrivate, &s.Notes, &s.AssignedAdmins, &s.CreatedAt)
	return s, err
}

func (t *tx) ListSubTasks(ctx context.Context, taskID int64) ([]models.SubTask, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+subTaskColumns+` FROM subtasks WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSubTask)
}

func (t *tx) GetSubTask(ctx context.Context, id int64) (*models.SubTask, error) {
	s, err := scanSubTask(t.tx.QueryRow(ctx, `SELECT `+subTaskColumns+` FROM subtasks WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "subtask")
	}
	return &s, nil
}

func (t *tx) SaveSubTask(ctx context.Context, s *models.SubTask) error {
	args := []any{s.TaskID, s.Title, s.Description, s.State, s.Complexity, s.Priority, s.IsPrivate,
		s.Notes, profileIDs(s.AssignedAdmins)}
	if s.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO subtasks (task_id, title, description, state, complexity, priority, is_private,
				notes, assigned_admins)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
			args...).Scan(&s.ID, &s.CreatedAt)
		return mapErr(err, "task")
	}
	err := t.tx.QueryRow(ctx, `
		UPDATE subtasks SET task_id = $1, title = $2, description = $3, state = $4, complexity = $5,
			priority = $6, is_private = $7, notes = $8, assigned_admins = $9
		WHERE id = $10 RETURNING created_at`,
		append(args, s.ID)...).Scan(&s.CreatedAt)
	return mapErr(err, "subtask")
}

func (t *tx) DeleteSubTask(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
	return removed(tag, err, "subtask")
}
