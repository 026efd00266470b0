package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iyunix/go-tilde/internal/domain"
	"github.com/iyunix/go-tilde/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })
	return db
}

var base = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newConv(id string, updated time.Time) *domain.Conversation {
	return &domain.Conversation{
		ID:      id,
		Title:   domain.DefaultConversationTitle,
		Created: base,
		Updated: updated,
		Content: "---\nid: " + id + "\n---\n\n",
	}
}

func TestCreateAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newConv("a", base)))

	got, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, domain.DefaultConversationTitle, got.Title)
	assert.True(t, base.Equal(got.Created))
	assert.True(t, base.Equal(got.Updated))
	assert.Equal(t, "---\nid: a\n---\n\n", got.Content)
}

func TestFindByID_NotFound(t *testing.T) {
	repo := NewConversationRepository(newTestDB(t))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))

	assert.Error(t, repo.Create(ctx, nil))
	assert.Error(t, repo.Create(ctx, &domain.Conversation{Created: base, Updated: base}))
	assert.Error(t, repo.Create(ctx, &domain.Conversation{ID: "x"}))
}

func TestFindAll_OrderedByUpdatedDesc(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newConv("old", base)))
	require.NoError(t, repo.Create(ctx, newConv("new", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newConv("mid", base.Add(30*time.Second))))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(all))

	bumped := newConv("old", base.Add(time.Hour))
	require.NoError(t, repo.Update(ctx, bumped))

	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new", "mid"}, ids(all))
}

func TestFindRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, newConv(id, base.Add(time.Duration(i)*time.Second))))
	}

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(recent))

	_, err = repo.FindRecent(ctx, 0)
	assert.Error(t, err)
}

func TestSearchByTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))

	titles := map[string]string{"a": "Dragons and castles", "b": "Tax return 100%", "c": "dragon fruit"}
	offset := 0
	for id, title := range titles {
		conv := newConv(id, base.Add(time.Duration(offset)*time.Second))
		conv.Title = title
		require.NoError(t, repo.Create(ctx, conv))
		offset++
	}

	found, err := repo.SearchByTitle(ctx, "DRAGON", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, ids(found))

	found, err = repo.SearchByTitle(ctx, "100%", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(found))

	found, err = repo.SearchByTitle(ctx, "_", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = repo.SearchByTitle(ctx, "  ", 10)
	assert.Error(t, err)
}

func TestUpdate_KeepsCreated(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, newConv("a", base)))

	later := base.Add(2 * time.Hour)
	require.NoError(t, repo.Update(ctx, &domain.Conversation{
		ID:      "a",
		Title:   "Renamed",
		Created: later,
		Updated: later,
		Content: "body",
	}))

	got, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "body", got.Content)
	assert.True(t, base.Equal(got.Created))
	assert.True(t, later.Equal(got.Updated))
}

func TestUpdate_NotFound(t *testing.T) {
	repo := NewConversationRepository(newTestDB(t))

	err := repo.Update(context.Background(), newConv("ghost", base))
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDeleteWithAttachments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationRepository(db)

	require.NoError(t, repo.Create(ctx, newConv("keep", base)))
	require.NoError(t, repo.Create(ctx, newConv("drop", base)))
	for _, a := range []domain.Attachment{
		{ID: "a1", ConversationID: "drop", Type: domain.AttachmentTypeImage, MimeType: "image/png", Blob: []byte{1}, Created: base},
		{ID: "a2", ConversationID: "drop", Type: domain.AttachmentTypePDF, MimeType: "application/pdf", Blob: []byte{2}, Created: base},
		{ID: "a3", ConversationID: "keep", Type: domain.AttachmentTypeFile, MimeType: "text/plain", Blob: []byte{3}, Created: base},
	} {
		att := a
		require.NoError(t, db.Create(&att).Error)
	}

	require.NoError(t, repo.DeleteWithAttachments(ctx, "drop"))

	exists, err := repo.ExistsByID(ctx, "drop")
	require.NoError(t, err)
	assert.False(t, exists)

	var remaining []domain.Attachment
	require.NoError(t, db.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "a3", remaining[0].ID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteWithAttachments_NotFoundRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationRepository(db)

	orphan := domain.Attachment{ID: "o1", ConversationID: "ghost", Type: domain.AttachmentTypeFile, MimeType: "text/plain", Blob: []byte{1}, Created: base}
	require.NoError(t, db.Create(&orphan).Error)

	err := repo.DeleteWithAttachments(ctx, "ghost")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, db.Model(&domain.Attachment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func ids(convs []domain.Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}
