package workbench

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// MaxWeight bounds a task's complexity and priority.
const MaxWeight = 3

// TaskInput is a task create or partial update.
type TaskInput struct {
	Title          models.Optional[string]           `json:"title"`
	Description    models.Optional[string]           `json:"description"`
	State          models.Optional[models.WorkState] `json:"state"`
	Complexity     models.Optional[int]              `json:"complexity"`
	Priority       models.Optional[int]              `json:"priority"`
	IsPrivate      models.Optional[bool]             `json:"is_private"`
	Notes          models.Optional[string]           `json:"notes"`
	TagIDs         models.Optional[[]int64]          `json:"tags"`
	AssignedAdmins models.Optional[[]uuid.UUID]      `json:"assigned_admins"`
	DependsOn      models.Optional[[]int64]          `json:"dependencies"`
}

// SubTaskInput is a sub-task create or partial update. TaskID is required on create.
type SubTaskInput struct {
	TaskID         int64                             `json:"task"`
	Title          models.Optional[string]           `json:"title"`
	Description    models.Optional[string]           `json:"description"`
	State          models.Optional[models.WorkState] `json:"state"`
	Complexity     models.Optional[int]              `json:"complexity"`
	Priority       models.Optional[int]              `json:"priority"`
	IsPrivate      models.Optional[bool]             `json:"is_private"`
	Notes          models.Optional[string]           `json:"notes"`
	AssignedAdmins models.Optional[[]uuid.UUID]      `json:"assigned_admins"`
}

func checkWeight(name string, o models.Optional[int]) error {
	if o.Set && !o.Null && (o.Value < 0 || o.Value > MaxWeight) {
		return apperr.Validation("%s must be between 0 and %d", name, MaxWeight)
	}
	return nil
}

func checkWork(title models.Optional[string], state models.Optional[models.WorkState], complexity, priority models.Optional[int]) error {
	if title.Set && strings.TrimSpace(title.Value) == "" {
		return apperr.Validation("missing title")
	}
	if state.Set && !state.Value.Valid() {
		return apperr.Validation("invalid state %q", state.Value)
	}
	if err := checkWeight("complexity", complexity); err != nil {
		return err
	}
	return checkWeight("priority", priority)
}

func checkAdmins(ctx context.Context, tx store.Tx, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := tx.GetProfile(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// withSubTasks returns t with its sub-tasks attached.
func withSubTasks(ctx context.Context, tx store.Tx, t *models.Task) (*models.Task, error) {
	subs, err := tx.ListSubTasks(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load subtasks: %w", err)
	}
	out := *t
	out.SubTasks = subs
	return &out, nil
}

func (s *Service) Tasks(ctx context.Context, caller auth.Identity) ([]models.Task, error) {
	var out []models.Task
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		all, err := tx.ListTasks(ctx, store.VisibilityQuery{IncludePrivate: caller.Moderator})
		if err != nil {
			return err
		}
		out = make([]models.Task, 0, len(all))
		for i := range all {
			t, err := withSubTasks(ctx, tx, &all[i])
			if err != nil {
				return err
			}
			out = append(out, *t)
		}
		return nil
	})
	return out, err
}

func (s *Service) Task(ctx context.Context, caller auth.Identity, id int64) (*models.Task, error) {
	var out *models.Task
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if t.IsPrivate && !caller.Moderator {
			return apperr.Forbidden("you are not authorized to view this task")
		}
		out, err = withSubTasks(ctx, tx, t)
		return err
	})
	return out, err
}

// SaveTask creates the task when id is zero and applies in to it otherwise.
func (s *Service) SaveTask(ctx context.Context, caller auth.Identity, id int64, in TaskInput) (*models.Task, error) {
	if err := requireModerator(caller, "edit tasks"); err != nil {
		return nil, err
	}
	if id == 0 && strings.TrimSpace(in.Title.Value) == "" {
		return nil, apperr.Validation("missing title")
	}
	if err := checkWork(in.Title, in.State, in.Complexity, in.Priority); err != nil {
		return nil, err
	}

	var out *models.Task
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t := &models.Task{State: models.StateNotStarted}
		if id != 0 {
			cur, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			t = cur
		}
		set(in.Title, &t.Title)
		set(in.Description, &t.Description)
		set(in.State, &t.State)
		in.Complexity.Apply(&t.Complexity)
		in.Priority.Apply(&t.Priority)
		set(in.IsPrivate, &t.IsPrivate)
		set(in.Notes, &t.Notes)
		set(in.TagIDs, &t.TagIDs)
		set(in.AssignedAdmins, &t.AssignedAdmins)

		if err := checkTags(ctx, tx, t.TagIDs); err != nil {
			return err
		}
		if err := checkAdmins(ctx, tx, t.AssignedAdmins); err != nil {
			return err
		}
		if in.DependsOn.Set {
			edges, err := tx.TaskDependencies(ctx)
			if err != nil {
				return fmt.Errorf("load task dependencies: %w", err)
			}
			if err := checkDependencies(edges, t.ID, in.DependsOn.Value); err != nil {
				return err
			}
			t.DependsOn = in.DependsOn.Value
		}

		if err := tx.SaveTask(ctx, t); err != nil {
			return err
		}
		var err error
		out, err = withSubTasks(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"task_id": out.ID, "state": out.State}).Info("task saved")
	return out, nil
}

func (s *Service) DeleteTask(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireModerator(caller, "delete tasks"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteTask(ctx, id) })
}

// FavoriteTask flips the caller's favorite mark on a task.
func (s *Service) FavoriteTask(ctx context.Context, caller auth.Identity, id int64) (*models.Task, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	var out *models.Task
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if t.IsPrivate && !caller.Moderator {
			return apperr.Forbidden("you are not authorized to view this task")
		}
		t.FavoritedBy = toggle(t.FavoritedBy, caller.ProfileID)
		if err := tx.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("save favorite: %w", err)
		}
		out, err = withSubTasks(ctx, tx, t)
		return err
	})
	return out, err
}

// SaveSubTask creates the sub-task when id is zero and applies in to it
// otherwise. It returns the parent task.
func (s *Service) SaveSubTask(ctx context.Context, caller auth.Identity, id int64, in SubTaskInput) (*models.Task, error) {
	if err := requireModerator(caller, "edit subtasks"); err != nil {
		return nil, err
	}
	if id == 0 && strings.TrimSpace(in.Title.Value) == "" {
		return nil, apperr.Validation("missing title")
	}
	if err := checkWork(in.Title, in.State, in.Complexity, in.Priority); err != nil {
		return nil, err
	}

	var out *models.Task
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		st := &models.SubTask{TaskID: in.TaskID, State: models.StateNotStarted}
		if id != 0 {
			cur, err := tx.GetSubTask(ctx, id)
			if err != nil {
				return err
			}
			st = cur
			if in.TaskID != 0 {
				st.TaskID = in.TaskID
			}
		}
		if st.TaskID == 0 {
			return apperr.Validation("missing task")
		}
		set(in.Title, &st.Title)
		set(in.Description, &st.Description)
		set(in.State, &st.State)
		in.Complexity.Apply(&st.Complexity)
		in.Priority.Apply(&st.Priority)
		set(in.IsPrivate, &st.IsPrivate)
		set(in.Notes, &st.Notes)
		set(in.AssignedAdmins, &st.AssignedAdmins)
		if err := checkAdmins(ctx, tx, st.AssignedAdmins); err != nil {
			return err
		}
		if err := tx.SaveSubTask(ctx, st); err != nil {
			return err
		}

		parent, err := tx.GetTask(ctx, st.TaskID)
		if err != nil {
			return err
		}
		out, err = withSubTasks(ctx, tx, parent)
		return err
	})
	return out, err
}

func (s *Service) DeleteSubTask(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireModerator(caller, "delete subtasks"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteSubTask(ctx, id) })
}
