package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	chatID int64
	text   string
	markup *models.InlineKeyboardMarkup
	at     time.Time
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[int64]bool
	closed map[int64]bool
	onSend func(chatID int64)
}

type closedChatError struct{}

func (closedChatError) Error() string     { return "Forbidden: bot was blocked by the user" }
func (closedChatError) Unreachable() bool { return true }

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error {
	f.mu.Lock()
	f.sent = append(f.sent, sent{chatID: chatID, text: text, markup: markup, at: time.Now()})
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(chatID)
	}
	if f.closed[chatID] {
		return fmt.Errorf("telegram sendMessage: %w", closedChatError{})
	}
	if f.failOn[chatID] {
		return errors.New("too many requests")
	}
	return nil
}

func (f *fakeSender) chats() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, s := range f.sent {
		ids = append(ids, s.chatID)
	}
	return ids
}

type fakeDirectory struct {
	clients    []int64
	interested map[string][]int64
	logs       []*models.BroadcastLog
	excluded   int64
	listErr    error
	inactive   []int64
}

func (d *fakeDirectory) ListBroadcastClients(_ context.Context, excludeID int64) ([]int64, error) {
	d.excluded = excludeID
	var out []int64
	for _, id := range d.clients {
		if id != excludeID {
			out = append(out, id)
		}
	}
	return out, d.listErr
}

func (d *fakeDirectory) ListInterestedClients(_ context.Context, ideaID string) ([]int64, error) {
	return d.interested[ideaID], d.listErr
}

func (d *fakeDirectory) SaveBroadcast(_ context.Context, l *models.BroadcastLog) error {
	d.logs = append(d.logs, l)
	return nil
}

func (d *fakeDirectory) SetClientActive(_ context.Context, id int64, active bool) error {
	if !active {
		d.inactive = append(d.inactive, id)
	}
	return nil
}

func TestBroadcastDedupesAndSorts(t *testing.T) {
	s := &fakeSender{}
	n := New(s, &fakeDirectory{}, 0, zap.NewNop())

	res := n.Broadcast(context.Background(), []int64{30, 10, 30, 20, 10}, Message{Text: "hi"})
	assert.Equal(t, Result{Attempted: 3, Delivered: 3, Failed: []int64{}}, res)
	assert.Equal(t, []int64{10, 20, 30}, s.chats())
}

func TestBroadcastFailureIsolation(t *testing.T) {
	s := &fakeSender{failOn: map[int64]bool{3: true}}
	n := New(s, &fakeDirectory{}, 0, zap.NewNop())

	res := n.Broadcast(context.Background(), []int64{1, 2, 3, 4, 5}, Message{Text: "hi"})
	assert.Equal(t, 5, res.Attempted)
	assert.Equal(t, 4, res.Delivered)
	assert.Equal(t, []int64{3}, res.Failed)
	// the failure did not stop later recipients
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, s.chats())
}

func TestBroadcastDeactivatesClosedChats(t *testing.T) {
	s := &fakeSender{failOn: map[int64]bool{2: true}, closed: map[int64]bool{3: true}}
	dir := &fakeDirectory{}
	n := New(s, dir, 0, zap.NewNop())

	res := n.Broadcast(context.Background(), []int64{1, 2, 3}, Message{Text: "hi"})
	assert.Equal(t, []int64{2, 3}, res.Failed)
	// a transient failure keeps the client, a closed chat does not
	assert.Equal(t, []int64{3}, dir.inactive)
}

func TestBroadcastEmpty(t *testing.T) {
	n := New(&fakeSender{}, &fakeDirectory{}, 0, zap.NewNop())
	res := n.Broadcast(context.Background(), nil, Message{Text: "hi"})
	assert.Equal(t, Result{Failed: []int64{}}, res)
}

func TestBroadcastSpacesSends(t *testing.T) {
	s := &fakeSender{}
	delay := 15 * time.Millisecond
	n := New(s, &fakeDirectory{}, delay, zap.NewNop())

	n.Broadcast(context.Background(), []int64{1, 2, 3}, Message{Text: "hi"})
	require.Len(t, s.sent, 3)
	for i := 1; i < len(s.sent); i++ {
		gap := s.sent[i].at.Sub(s.sent[i-1].at)
		assert.GreaterOrEqual(t, gap, delay-2*time.Millisecond, "gap %d", i)
	}
}

func TestBroadcastCancellationMarksRemainingFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &fakeSender{onSend: func(chatID int64) {
		if chatID == 2 {
			cancel()
		}
	}}
	n := New(s, &fakeDirectory{}, 0, zap.NewNop())

	res := n.Broadcast(ctx, []int64{1, 2, 3, 4}, Message{Text: "hi"})
	assert.Equal(t, 4, res.Attempted)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []int64{3, 4}, res.Failed)
}

func TestAnnounceApproved(t *testing.T) {
	s := &fakeSender{failOn: map[int64]bool{4: true}}
	dir := &fakeDirectory{clients: []int64{1, 2, 3, 4}}
	n := New(s, dir, 0, zap.NewNop())
	idea := &models.Idea{ID: "i1", AuthorID: 1, Title: "PDF <export>"}

	res, err := n.AnnounceApproved(context.Background(), idea)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dir.excluded)
	assert.Equal(t, []int64{2, 3, 4}, s.chats())
	assert.Equal(t, []int64{4}, res.Failed)

	first := s.sent[0]
	assert.Contains(t, first.text, "PDF &lt;export&gt;")
	require.NotNil(t, first.markup)
	assert.Equal(t, "want:i1", first.markup.InlineKeyboard[0][0].CallbackData)

	require.Len(t, dir.logs, 1)
	assert.Equal(t, models.PolicyAnnounceApproved, dir.logs[0].Policy)
	assert.Equal(t, 3, dir.logs[0].Attempted)
	assert.Equal(t, 2, dir.logs[0].Delivered)
	assert.Len(t, dir.logs[0].ID, 26)
}

func TestAnnounceDone(t *testing.T) {
	s := &fakeSender{}
	dir := &fakeDirectory{interested: map[string][]int64{"i1": {7, 5}}}
	n := New(s, dir, 0, zap.NewNop())

	res, err := n.AnnounceDone(context.Background(), &models.Idea{ID: "i1", Title: "PDF export"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []int64{5, 7}, s.chats())
	assert.Nil(t, s.sent[0].markup)
	assert.Equal(t, models.PolicyAnnounceDone, dir.logs[0].Policy)
}

func TestAnnounceRecipientLookupFailure(t *testing.T) {
	s := &fakeSender{}
	dir := &fakeDirectory{listErr: models.ErrStorage}
	n := New(s, dir, 0, zap.NewNop())

	_, err := n.AnnounceApproved(context.Background(), &models.Idea{ID: "i1"})
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.Empty(t, s.sent)
	assert.Empty(t, dir.logs)
}

func TestNotifyAdmins(t *testing.T) {
	s := &fakeSender{}
	dir := &fakeDirectory{}
	n := New(s, dir, 0, zap.NewNop())

	res := n.NotifyAdmins(context.Background(), "i1", []int64{9, 8}, Message{Text: "new"})
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, models.PolicyAdminSummary, dir.logs[0].Policy)
}
