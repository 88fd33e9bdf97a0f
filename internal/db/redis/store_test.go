package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/edgescan/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func isDBError(err error, op string) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr) && dbErr.Op == op
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error without addrs")
	}
}

func TestPing(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG")))
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(context.DeadlineExceeded))
	if err := s.Ping(context.Background()); !isDBError(err, db.OpPing) {
		t.Fatalf("want PING db.Error, got %v", err)
	}
}

func TestWaitForReady(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()
	err := s.WaitForReady(context.Background(), 250*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		reply   rueidis.RedisResult
		want    string
		wantErr func(error) bool
	}{
		{name: "value", reply: mock.Result(mock.RedisBlobString("run-json")), want: "run-json"},
		{
			name:    "missing",
			reply:   mock.Result(mock.RedisNil()),
			wantErr: func(err error) bool { return errors.Is(err, db.ErrKeyNotFound) },
		},
		{
			name:  "network",
			reply: mock.ErrorResult(context.DeadlineExceeded),
			wantErr: func(err error) bool {
				return isDBError(err, db.OpGet) && !errors.Is(err, db.ErrKeyNotFound)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("GET", "edgescan:run:1")).Return(tt.reply)

			got, err := s.Get(context.Background(), "edgescan:run:1")
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "3600")).
		Return(mock.Result(mock.RedisString("OK")))
	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), 0); !isDBError(err, db.OpSet) {
		t.Errorf("zero ttl: want SET db.Error, got %v", err)
	}

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SET" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))
	if err := s.Set(context.Background(), "k", []byte("v")); !isDBError(err, db.OpSet) {
		t.Errorf("want SET db.Error, got %v", err)
	}
}

func TestDelAndExists(t *testing.T) {
	s, c := newMockStore(t)
	ctx := context.Background()

	c.EXPECT().Do(gomock.Any(), mock.Match("DEL", "k")).Return(mock.Result(mock.RedisInt64(1)))
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tc := range []struct {
		count int64
		want  bool
	}{{1, true}, {0, false}} {
		c.EXPECT().Do(gomock.Any(), mock.Match("EXISTS", "k")).Return(mock.Result(mock.RedisInt64(tc.count)))
		ok, err := s.Exists(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok != tc.want {
			t.Errorf("Exists with count %d = %v, want %v", tc.count, ok, tc.want)
		}
	}
}

func TestScan_WalksCursor(t *testing.T) {
	s, c := newMockStore(t)

	pages := []rueidis.RedisResult{
		mock.Result(mock.RedisArray(
			mock.RedisInt64(42),
			mock.RedisArray(mock.RedisString("edgescan:run:1")),
		)),
		mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("edgescan:run:2"), mock.RedisString("edgescan:run:3")),
		)),
	}
	var cursors []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "edgescan:run:*" && cmd[5] == "100"
		})).
		DoAndReturn(func(_ context.Context, cmd rueidis.Completed) rueidis.RedisResult {
			cursors = append(cursors, cmd.Commands()[1])
			return pages[len(cursors)-1]
		}).Times(2)

	keys, err := s.Scan(context.Background(), "edgescan:run:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
	if cursors[0] != "0" || cursors[1] != "42" {
		t.Errorf("cursors = %v, want [0 42]", cursors)
	}
}

func TestHash(t *testing.T) {
	s, c := newMockStore(t)
	ctx := context.Background()

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HSET", "idx", "r1", "{}")).
		Return(mock.Result(mock.RedisInt64(1)))
	if err := s.HSet(ctx, "idx", map[string]string{"r1": "{}"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "idx")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"r1": mock.RedisString("a"),
			"r2": mock.RedisString("b"),
		})))
	m, err := s.HGetAll(ctx, "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["r1"] != "a" || m["r2"] != "b" {
		t.Errorf("unexpected map: %v", m)
	}

	c.EXPECT().Do(gomock.Any(), mock.Match("HDEL", "idx", "r1")).Return(mock.Result(mock.RedisInt64(1)))
	if err := s.HDel(ctx, "idx", "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HSET" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))
	if err := s.HSet(ctx, "idx", map[string]string{"f": "v"}); !isDBError(err, db.OpHSet) {
		t.Errorf("want HSET db.Error, got %v", err)
	}
}

func TestHash_EmptyArgsSkipServer(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.HSet(context.Background(), "idx", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HDel(context.Background(), "idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
