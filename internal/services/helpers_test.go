package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	sqlDB, err := d.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return d
}

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func seedUser(t *testing.T, d *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    strings.Split(email, "@")[0],
		Role:         role,
		Status:       models.UserActive,
		IsVerified:   true,
	}
	require.NoError(t, d.Create(u).Error)
	return u
}

type sentMsg struct {
	user string
	msg  realtime.Message
}

// recordingPusher stands in for the Hub.
type recordingPusher struct {
	mu         sync.Mutex
	online     map[string]bool
	sent       []sentMsg
	broadcasts []sentMsg
	failSend   bool
}

func newPusher(online ...string) *recordingPusher {
	p := &recordingPusher{online: map[string]bool{}}
	for _, u := range online {
		p.online[u] = true
	}
	return p
}

func (p *recordingPusher) SendTo(userID string, msg realtime.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online[userID] {
		return nil
	}
	if p.failSend {
		return errors.New("write: broken pipe")
	}
	p.sent = append(p.sent, sentMsg{userID, msg})
	return nil
}

func (p *recordingPusher) Broadcast(msg realtime.Message, exclude string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, sentMsg{exclude, msg})
	return len(p.online)
}

func (p *recordingPusher) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *recordingPusher) broadcastTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, b := range p.broadcasts {
		out = append(out, b.msg.Type)
	}
	return out
}

type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func newCounter() *counter { return &counter{n: map[string]int{}} }

func (c *counter) inc(k string) {
	c.mu.Lock()
	c.n[k]++
	c.mu.Unlock()
}

func (c *counter) get(k string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[k]
}

func (c *counter) AuthEvent(e string)    { c.inc(e) }
func (c *counter) Notification(d string) { c.inc(d) }
func (c *counter) Conversion(r string)   { c.inc(r) }

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *recordingMailer) SendOTP(_ context.Context, email, code string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[email] = code
	return nil
}

// seqOTP hands out predictable codes.
type seqOTP struct {
	codes []string
	i     int
}

func (s *seqOTP) Generate() (string, error) {
	if s.i >= len(s.codes) {
		return "", errors.New("out of codes")
	}
	c := s.codes[s.i]
	s.i++
	return c, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	c, err := auth.NewTokenCodec("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	return c
}
