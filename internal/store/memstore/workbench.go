package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (t *tx) tagUseCount(id int64) int {
	n := 0
	for _, p := range t.st.proposals {
		if slices.Contains(p.TagIDs, id) {
			n++
		}
	}
	for _, tk := range t.st.tasks {
		if slices.Contains(tk.TagIDs, id) {
			n++
		}
	}
	return n
}

func (t *tx) ListTags(context.Context) ([]models.Tag, error) {
	out := sortedByID(t.st.tags, nil)
	for i := range out {
		out[i].UseCount = t.tagUseCount(out[i].ID)
	}
	return out, nil
}

func (t *tx) GetTag(_ context.Context, id int64) (*models.Tag, error) {
	tag, err := get(t.st.tags, id, "tag")
	if err != nil {
		return nil, err
	}
	tag.UseCount = t.tagUseCount(id)
	return tag, nil
}

func (t *tx) SaveTag(_ context.Context, tag *models.Tag) error {
	for _, other := range t.st.tags {
		if other.ID != tag.ID && strings.EqualFold(other.Name, tag.Name) {
			return apperr.Conflict("tag %q already exists", tag.Name)
		}
	}
	if tag.ID == 0 {
		tag.CreatedAt = t.now()
	} else if cur, ok := t.st.tags[tag.ID]; ok {
		tag.CreatedAt = cur.CreatedAt
	}
	return save(t, "tags", t.st.tags, &tag.ID, tag, "tag")
}

func (t *tx) DeleteTag(_ context.Context, id int64) error {
	if err := remove(t.st.tags, id, "tag"); err != nil {
		return err
	}
	for pid, p := range t.st.proposals {
		p.TagIDs = slices.DeleteFunc(slices.Clone(p.TagIDs), func(v int64) bool { return v == id })
		t.st.proposals[pid] = p
	}
	for tid, tk := range t.st.tasks {
		tk.TagIDs = slices.DeleteFunc(slices.Clone(tk.TagIDs), func(v int64) bool { return v == id })
		t.st.tasks[tid] = tk
	}
	return nil
}

func cloneProposal(p models.Proposal) models.Proposal {
	p.TagIDs = slices.Clone(p.TagIDs)
	p.FavoritedBy = slices.Clone(p.FavoritedBy)
	return p
}

func (t *tx) ListProposals(_ context.Context, q store.VisibilityQuery) ([]models.Proposal, error) {
	out := sortedByID(t.st.proposals, func(p models.Proposal) bool { return q.IncludePrivate || !p.IsPrivate })
	for i := range out {
		out[i] = cloneProposal(out[i])
	}
	return out, nil
}

func (t *tx) GetProposal(_ context.Context, id int64) (*models.Proposal, error) {
	p, err := get(t.st.proposals, id, "proposal")
	if err != nil {
		return nil, err
	}
	cp := cloneProposal(*p)
	return &cp, nil
}

func (t *tx) SaveProposal(_ context.Context, p *models.Proposal) error {
	if p.ID == 0 {
		p.CreatedAt = t.now()
	} else if cur, ok := t.st.proposals[p.ID]; ok {
		p.CreatedAt = cur.CreatedAt
	}
	row := cloneProposal(*p)
	if err := save(t, "proposals", t.st.proposals, &row.ID, &row, "proposal"); err != nil {
		return err
	}
	p.ID = row.ID
	return nil
}

func (t *tx) DeleteProposal(_ context.Context, id int64) error {
	return remove(t.st.proposals, id, "proposal")
}

func cloneTask(tk models.Task) models.Task {
	tk.TagIDs = slices.Clone(tk.TagIDs)
	tk.AssignedAdmins = slices.Clone(tk.AssignedAdmins)
	tk.FavoritedBy = slices.Clone(tk.FavoritedBy)
	tk.DependsOn = slices.Clone(tk.DependsOn)
	tk.SubTasks = nil
	return tk
}

func (t *tx) ListTasks(_ context.Context, q store.VisibilityQuery) ([]models.Task, error) {
	out := sortedByID(t.st.tasks, func(tk models.Task) bool { return q.IncludePrivate || !tk.IsPrivate })
	for i := range out {
		out[i] = cloneTask(out[i])
	}
	return out, nil
}

func (t *tx) GetTask(_ context.Context, id int64) (*models.Task, error) {
	tk, err := get(t.st.tasks, id, "task")
	if err != nil {
		return nil, err
	}
	cp := cloneTask(*tk)
	return &cp, nil
}

func (t *tx) SaveTask(_ context.Context, tk *models.Task) error {
	for _, dep := range tk.DependsOn {
		if _, ok := t.st.tasks[dep]; !ok && dep != tk.ID {
			return apperr.NotFound("task %d not found", dep)
		}
	}
	if tk.ID == 0 {
		tk.CreatedAt = t.now()
	} else if cur, ok := t.st.tasks[tk.ID]; ok {
		tk.CreatedAt = cur.CreatedAt
	}
	row := cloneTask(*tk)
	if err := save(t, "tasks", t.st.tasks, &row.ID, &row, "task"); err != nil {
		return err
	}
	tk.ID = row.ID
	return nil
}

func (t *tx) DeleteTask(_ context.Context, id int64) error {
	if err := remove(t.st.tasks, id, "task"); err != nil {
		return err
	}
	for sid, s := range t.st.subtasks {
		if s.TaskID == id {
			delete(t.st.subtasks, sid)
		}
	}
	for tid, tk := range t.st.tasks {
		if slices.Contains(tk.DependsOn, id) {
			tk.DependsOn = slices.DeleteFunc(slices.Clone(tk.DependsOn), func(v int64) bool { return v == id })
			t.st.tasks[tid] = tk
		}
	}
	return nil
}

func (t *tx) TaskDependencies(context.Context) (map[int64][]int64, error) {
	edges := make(map[int64][]int64, len(t.st.tasks))
	for id, tk := range t.st.tasks {
		if len(tk.DependsOn) > 0 {
			edges[id] = slices.Clone(tk.DependsOn)
		}
	}
	return edges, nil
}

func (t *tx) ListSubTasks(_ context.Context, taskID int64) ([]models.SubTask, error) {
	out := sortedByID(t.st.subtasks, func(s models.SubTask) bool { return s.TaskID == taskID })
	for i := range out {
		out[i].AssignedAdmins = slices.Clone(out[i].AssignedAdmins)
	}
	return out, nil
}

func (t *tx) GetSubTask(_ context.Context, id int64) (*models.SubTask, error) {
	s, err := get(t.st.subtasks, id, "subtask")
	if err != nil {
		return nil, err
	}
	s.AssignedAdmins = slices.Clone(s.AssignedAdmins)
	return s, nil
}

func (t *tx) SaveSubTask(_ context.Context, s *models.SubTask) error {
	if _, ok := t.st.tasks[s.TaskID]; !ok {
		return apperr.NotFound("task not found")
	}
	if s.ID == 0 {
		s.CreatedAt = t.now()
	} else if cur, ok := t.st.subtasks[s.ID]; ok {
		s.CreatedAt = cur.CreatedAt
	}
	row := *s
	row.AssignedAdmins = slices.Clone(s.AssignedAdmins)
	if err := save(t, "subtasks", t.st.subtasks, &row.ID, &row, "subtask"); err != nil {
		return err
	}
	s.ID = row.ID
	return nil
}

func (t *tx) DeleteSubTask(_ context.Context, id int64) error {
	return remove(t.st.subtasks, id, "subtask")
}
