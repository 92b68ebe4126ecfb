package valkey

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/gradsearch/internal/db"
)

func newTestStore(c rueidis.Client) *Store {
	return &Store{client: c}
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := newTestStore(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	err := s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected db.Error with PING op, got %v", err)
	}
}

func TestIsServerErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisError("ERR Unknown Index name 'jobsearch'")))
	serverErr := c.Do(context.Background(), c.B().Ping().Build()).Error()

	tests := []struct {
		name    string
		err     error
		phrases []string
		want    bool
	}{
		{"case insensitive", serverErr, []string{"unknown index name"}, true},
		{"any phrase", serverErr, []string{"already exists", "UNKNOWN INDEX"}, true},
		{"no phrase", serverErr, []string{"already exists"}, false},
		{"transport error", errors.New("unknown index name"), []string{"unknown index name"}, false},
		{"nil", nil, []string{"x"}, false},
	}
	for _, tc := range tests {
		if got := isServerErr(tc.err, tc.phrases...); got != tc.want {
			t.Errorf("%s: isServerErr = %v, want %v", tc.name, got, tc.want)
		}
	}
	if !isMissingIndex(serverErr) {
		t.Error("isMissingIndex should match valkey-search wording")
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	err := newTestStore(c).WaitForReady(context.Background(), 120*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected timeout carrying the last ping error, got %v", err)
	}
}

func TestWaitForReady_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := newTestStore(c).WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisBlobString("v")))

	s := newTestStore(c)
	got, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q, want v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisNil()))

	s := newTestStore(c)
	_, err := s.Get(context.Background(), "k")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), 60*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "jobsearch" &&
				cmd[2] == "ON" && cmd[3] == "HASH" &&
				cmd[4] == "PREFIX" && cmd[5] == "1" && cmd[6] == "gradsearch:jobsearch:"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	idx := db.NewIndex("jobsearch").
		Tag("term").
		VectorHNSW("documents_vector", 4, db.DistanceCosine, 16, 200).
		MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := newTestStore(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "v", Type: db.IndexFieldVector, VectorDim: 2}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_DeletesDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.DROPINDEX", "jobsearch")).
			Return(mock.Result(mock.RedisString("OK"))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "gradsearch:jobsearch:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("gradsearch:jobsearch:a")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("DEL", "gradsearch:jobsearch:a")).
			Return(mock.Result(mock.RedisInt64(1))),
	)

	s := newTestStore(c)
	if err := s.DropIndex(context.Background(), "jobsearch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := newTestStore(c)
	err := s.DropIndex(context.Background(), "test:idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists_True(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"))))

	s := newTestStore(c)
	exists, err := s.IndexExists(context.Background(), "test:idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected true")
	}
}

func TestIndexExists_False(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := newTestStore(c)
	exists, err := s.IndexExists(context.Background(), "test:idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}

func TestCountDocuments_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "gradsearch:jobsearch:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(7),
				mock.RedisArray(mock.RedisString("gradsearch:jobsearch:a"), mock.RedisString("gradsearch:jobsearch:b")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "7", "MATCH", "gradsearch:jobsearch:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("gradsearch:jobsearch:c")),
			))),
	)

	s := newTestStore(c)
	n, err := s.CountDocuments(context.Background(), "jobsearch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

// --- bulk.go tests ---

func TestBulkIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			for _, cmd := range cmds {
				args := cmd.Commands()
				if args[0] != "HSET" {
					t.Errorf("expected HSET, got %v", args)
				}
			}
			return []rueidis.RedisResult{
				mock.Result(mock.RedisInt64(3)),
				mock.Result(mock.RedisInt64(3)),
			}
		})

	s := newTestStore(c)
	n, err := s.BulkIndex(context.Background(), "jobsearch", "documents_vector", []db.Doc{
		{ID: "a", Fields: map[string]string{"thema": "x"}, Vector: []float32{1, 0}},
		{ID: "b", Fields: map[string]string{"thema": "y"}, Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed = %d, want 2", n)
	}
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(3)),
			mock.ErrorResult(errors.New("OOM")),
		})

	s := newTestStore(c)
	n, err := s.BulkIndex(context.Background(), "jobsearch", "documents_vector", []db.Doc{
		{ID: "a", Vector: []float32{1}},
		{ID: "b", Vector: []float32{1}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 1 {
		t.Errorf("indexed = %d, want 1", n)
	}
}

func TestBulkIndex_Empty(t *testing.T) {
	s := newTestStore(nil)
	n, err := s.BulkIndex(context.Background(), "jobsearch", "documents_vector", nil)
	if err != nil || n != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", n, err)
	}
}

func TestBulkIndex_MissingID(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	s := newTestStore(c)
	_, err := s.BulkIndex(context.Background(), "jobsearch", "documents_vector", []db.Doc{{Vector: []float32{1}}})
	if !errors.Is(err, db.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

// --- search.go tests ---

func TestScoreSearch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "jobsearch")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("jobsearch"),
			mock.RedisString("num_docs"), mock.RedisString("40"),
		)))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "jobsearch" &&
				cmd[2] == "*=>[KNN 10 @documents_vector $BLOB AS __documents_vector_score]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("gradsearch:jobsearch:a"),
			mock.RedisArray(
				mock.RedisString("__documents_vector_score"),
				mock.RedisString("0.2"),
				mock.RedisString("thema"),
				mock.RedisString("hello"),
			),
			mock.RedisString("gradsearch:jobsearch:b"),
			mock.RedisArray(
				mock.RedisString("__documents_vector_score"),
				mock.RedisString("1"),
				mock.RedisString("thema"),
				mock.RedisString("world"),
			),
		)))

	s := newTestStore(c)
	result, err := s.ScoreSearch(context.Background(), &db.ScoreQuery{
		Index:        "jobsearch",
		VectorField:  "documents_vector",
		Vector:       []float32{0.1, 0.2},
		Function:     db.CosinePlusOne,
		Size:         10,
		ReturnFields: []string{"thema"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 40 || len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries out of 40 scored, got %+v", result)
	}
	// cosine distance 0.2 maps to cosine 0.8, shifted to 1.8
	if math.Abs(result.Entries[0].Score-1.8) > 1e-9 {
		t.Errorf("expected score 1.8, got %f", result.Entries[0].Score)
	}
	if math.Abs(result.Entries[1].Score-1.0) > 1e-9 {
		t.Errorf("expected score 1.0, got %f", result.Entries[1].Score)
	}
	if _, ok := result.Entries[0].Fields["__documents_vector_score"]; ok {
		t.Error("score field must be removed from fields")
	}
	if result.Entries[0].Fields["thema"] != "hello" {
		t.Errorf("unexpected fields %v", result.Entries[0].Fields)
	}
}

func TestIndexedDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "jobsearch")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("num_docs"), mock.RedisInt64(12)))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "jobsearch")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("jobsearch")))),
	)

	s := newTestStore(c)
	if n, err := s.indexedDocs(context.Background(), "jobsearch"); err != nil || n != 12 {
		t.Errorf("got (%d, %v), want (12, nil)", n, err)
	}
	if n, err := s.indexedDocs(context.Background(), "jobsearch"); err != nil || n != 0 {
		t.Errorf("got (%d, %v), want (0, nil)", n, err)
	}
}

func TestScoreSearch_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("jobsearch: no such index")))

	s := newTestStore(c)
	_, err := s.ScoreSearch(context.Background(), &db.ScoreQuery{
		Index: "jobsearch", VectorField: "v", Vector: []float32{1}, Function: db.CosinePlusOne, Size: 1,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestScoreSearch_Validation(t *testing.T) {
	s := &Store{}
	_, err := s.ScoreSearch(context.Background(), &db.ScoreQuery{Index: "idx", Size: 10})
	if !errors.Is(err, db.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestScoreSearch_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := newTestStore(c)
	result, err := s.ScoreSearch(context.Background(), &db.ScoreQuery{
		Index: "jobsearch", VectorField: "v", Vector: []float32{1}, Function: db.CosinePlusOne, Size: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(result.Entries))
	}
}

// --- helpers ---

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.0, -2.5})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	// 1.0 little-endian: 00 00 80 3f
	if b[2] != 0x80 || b[3] != 0x3f {
		t.Errorf("unexpected encoding % x", b[:4])
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	_, err := buildCreateArgs(&db.IndexDefinition{Name: "", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}})
	if err == nil {
		t.Error("expected error for empty name")
	}

	_, err = buildCreateArgs(&db.IndexDefinition{Name: "test"})
	if err == nil {
		t.Error("expected error for empty fields")
	}
}

func TestBuildFieldArgs_AllTypes(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
		want  string
	}{
		{"tag", db.IndexField{Name: "f", Type: db.IndexFieldTag}, "TAG"},
		{"vector", db.IndexField{Name: "f", Type: db.IndexFieldVector, VectorDim: 128, VectorAlgo: db.VectorHNSW}, "VECTOR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args, err := buildFieldArgs(&tc.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			found := false
			for _, a := range args {
				if a == tc.want {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected %q in args %v", tc.want, args)
			}
		})
	}
}
