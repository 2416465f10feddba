package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// TemplateRepo keeps templates in process. A single mutex makes every
// flag change atomic, mirroring the row lock the SQL store takes.
type TemplateRepo struct {
	mu    sync.Mutex
	rows  []domain.Template
	users *UserRepo
	now   func() time.Time
}

// NewTemplateRepo keeps users' enrolled flag in sync when users is non-nil.
func NewTemplateRepo(users *UserRepo) *TemplateRepo {
	return &TemplateRepo{users: users, now: time.Now}
}

func (r *TemplateRepo) ActivePrimary(ctx context.Context, userID string, m domain.Modality) (domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.primaryIdx(userID, m); i >= 0 {
		return clone(r.rows[i]), nil
	}
	return domain.Template{}, domain.ErrNotEnrolled(m)
}

func (r *TemplateRepo) Enroll(ctx context.Context, t domain.Template, replace bool) (domain.Template, error) {
	if err := ctx.Err(); err != nil {
		return domain.Template{}, domain.ErrDBUnavailable(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.primaryIdx(t.UserID, t.Modality); i >= 0 {
		if !replace {
			return domain.Template{}, domain.ErrAlreadyEnrolled(t.Modality)
		}
		r.demote(i)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	t.Active, t.Primary, t.DeactivatedAt = true, true, nil
	t = clone(t)
	r.rows = append(r.rows, t)
	r.syncEnrolled(t.UserID)
	return clone(t), nil
}

func (r *TemplateRepo) ListByUser(ctx context.Context, userID string) ([]domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Template
	for _, t := range r.rows {
		if t.UserID == userID {
			out = append(out, clone(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *TemplateRepo) Deactivate(ctx context.Context, userID, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(userID, templateID)
	if i < 0 || !r.rows[i].Active {
		return domain.ErrTemplateNotFound()
	}
	r.demote(i)
	r.syncEnrolled(userID)
	return nil
}

func (r *TemplateRepo) SetPrimary(ctx context.Context, userID, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(userID, templateID)
	if i < 0 {
		return domain.ErrTemplateNotFound()
	}
	if !r.rows[i].Active {
		return domain.ErrTemplateInactive()
	}
	if r.rows[i].Primary {
		return nil
	}
	if cur := r.primaryIdx(userID, r.rows[i].Modality); cur >= 0 {
		r.rows[cur].Primary = false
	}
	r.rows[i].Primary = true
	return nil
}

func (r *TemplateRepo) primaryIdx(userID string, m domain.Modality) int {
	for i, t := range r.rows {
		if t.UserID == userID && t.Modality == m && t.Active && t.Primary {
			return i
		}
	}
	return -1
}

func (r *TemplateRepo) find(userID, id string) int {
	for i, t := range r.rows {
		if t.ID == id && t.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *TemplateRepo) demote(i int) {
	at := r.now().UTC()
	r.rows[i].Active, r.rows[i].Primary, r.rows[i].DeactivatedAt = false, false, &at
}

func (r *TemplateRepo) syncEnrolled(userID string) {
	if r.users == nil {
		return
	}
	enrolled := false
	for _, t := range r.rows {
		if t.UserID == userID && t.Active {
			enrolled = true
			break
		}
	}
	r.users.setEnrolled(userID, enrolled)
}

func clone(t domain.Template) domain.Template {
	t.Payload = append([]byte(nil), t.Payload...)
	if t.DeactivatedAt != nil {
		at := *t.DeactivatedAt
		t.DeactivatedAt = &at
	}
	return t
}
