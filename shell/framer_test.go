package shell

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/adbshell/metrics"
	"github.com/pithecene-io/adbshell/shell/codec"
)

// recorder counts flushes on top of a LineCollector.
type recorder struct {
	LineCollector
	flushes int
}

func (r *recorder) Flush() error {
	r.flushes++
	return nil
}

func feedAll(t *testing.T, f *Framer, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		require.NoError(t, f.Feed([]byte(c)))
	}
}

func TestFramer_LineSplitAcrossChunks(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	feedAll(t, f, "hello\nwor", "ld\n")

	require.Equal(t, []string{"hello", "world"}, r.Lines())
	require.Empty(t, f.Pending())
}

func TestFramer_TrailingLineEmittedAtFinish(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	feedAll(t, f, "no-newline-tail")
	require.Zero(t, r.Len(), "tail must not be emitted before Finish")
	require.Equal(t, "no-newline-tail", f.Pending())

	require.NoError(t, f.Finish())
	require.Equal(t, []string{"no-newline-tail"}, r.Lines())
	require.Equal(t, 1, r.flushes)
}

func TestFramer_FinishWithoutPartialEmitsNothing(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	feedAll(t, f, "a\nb\n")
	require.NoError(t, f.Finish())

	require.Equal(t, []string{"a", "b"}, r.Lines())
	require.Equal(t, 1, r.flushes)
}

func TestFramer_FinishOnEmptyStream(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	require.NoError(t, f.Finish())
	require.Zero(t, r.Len())
	require.Equal(t, 1, r.flushes)
}

func TestFramer_Terminators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"lf", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"cr", "a\rb\r", []string{"a", "b"}},
		{"mixed", "a\r\nb\nc\rd", []string{"a", "b", "c", "d"}},
		{"blank lines kept", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"cr cr lf", "a\r\r\nb", []string{"a", "", "b"}},
		{"lf cr", "a\n\rb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			f := NewFramer(r)
			feedAll(t, f, tt.input)
			require.NoError(t, f.Finish())
			require.Equal(t, tt.want, r.Lines())
		})
	}
}

func TestFramer_CRLFSplitAcrossChunks(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	feedAll(t, f, "first\r", "\nsecond\r", "", "\n")
	require.NoError(t, f.Finish())

	require.Equal(t, []string{"first", "second"}, r.Lines())
}

func TestFramer_MultiByteSplitAcrossChunks(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	euro := []byte("€")
	require.Len(t, euro, 3)
	for _, b := range euro {
		require.NoError(t, f.Feed([]byte{b}))
	}
	feedAll(t, f, "\n")

	require.Equal(t, []string{"€"}, r.Lines())
}

func TestFramer_SplitInvariance(t *testing.T) {
	input := []byte("héllo\r\nwörld\rfoo\n\nbar € tail")
	want := []string{"héllo", "wörld", "foo", "", "bar € tail"}

	run := func(chunks ...[]byte) []string {
		r := &recorder{}
		f := NewFramer(r)
		for _, c := range chunks {
			require.NoError(t, f.Feed(c))
		}
		require.NoError(t, f.Finish())
		return r.Lines()
	}

	require.Equal(t, want, run(input))

	for i := 0; i <= len(input); i++ {
		require.Equal(t, want, run(input[:i], input[i:]), "split at %d", i)
	}

	single := make([][]byte, 0, len(input))
	for i := range input {
		single = append(single, input[i:i+1])
	}
	require.Equal(t, want, run(single...))
}

func TestFramer_ChunkNotRetained(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	chunk := []byte("abc\xe2\x82")
	require.NoError(t, f.Feed(chunk))
	for i := range chunk {
		chunk[i] = 'X'
	}
	feedAll(t, f, "\xac\n")

	require.Equal(t, []string{"abc€"}, r.Lines())
}

func TestFramer_EmptyChunkIsNoOp(t *testing.T) {
	r := &recorder{}
	m := metrics.NewCollector("UTF-8", "lines", "")
	f := NewFramer(r, WithCollector(m))

	feedAll(t, f, "abc")
	before := m.Snapshot()

	require.NoError(t, f.Feed(nil))
	require.NoError(t, f.Feed([]byte{}))

	require.Equal(t, "abc", f.Pending())
	require.Zero(t, r.Len())
	require.Equal(t, before, m.Snapshot())
}

func TestFramer_FeedAfterFinish(t *testing.T) {
	f := NewFramer(&recorder{})
	require.NoError(t, f.Finish())

	err := f.Feed([]byte("late\n"))
	require.Error(t, err)
	require.True(t, IsMisuseError(err))
	require.ErrorIs(t, err, ErrFinished)

	err = f.Finish()
	require.True(t, IsMisuseError(err))
	require.ErrorIs(t, err, ErrFinished)
	require.True(t, f.Finished())
}

func TestFramer_ConcurrentFeedRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	recv := ReceiverFunc(func(string) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	f := NewFramer(recv)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = f.Feed([]byte("one\n"))
	}()

	<-started
	err := f.Feed([]byte("two\n"))
	require.True(t, IsMisuseError(err))
	require.ErrorIs(t, err, ErrConcurrentFeed)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	require.NoError(t, f.Feed([]byte("three\n")))
}

func TestFramer_DecodeError(t *testing.T) {
	r := &recorder{}
	m := metrics.NewCollector("UTF-8", "lines", "")
	f := NewFramer(r, WithCollector(m))

	err := f.Feed([]byte("ok\n\xffbad\n"))
	require.Error(t, err)
	require.True(t, IsDecodeError(err))
	require.ErrorIs(t, err, codec.ErrInvalidInput)

	var fe *FramingError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, int64(3), fe.Offset)

	require.Equal(t, []string{"ok"}, r.Lines())
	require.Equal(t, err, f.Feed([]byte("more\n")))
	require.Equal(t, err, f.Finish())
	require.Zero(t, r.flushes, "receiver must not be flushed after a decode error")
	require.Equal(t, int64(1), m.Snapshot().DecodeErrors)
}

func TestFramer_IncompleteSequenceAtFinish(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	feedAll(t, f, "line\n\xe2\x82")
	require.Equal(t, []string{"line"}, r.Lines())

	err := f.Finish()
	require.True(t, IsDecodeError(err))
	require.Zero(t, r.flushes)
}

func TestFramer_FinishTruncatedDropsIncompleteSequence(t *testing.T) {
	m := metrics.NewCollector("UTF-8", "lines", "")
	r := &recorder{}
	f := NewFramer(r, WithCollector(m))

	feedAll(t, f, "done\nhalf \xe2\x82")
	require.NoError(t, f.FinishTruncated())

	require.Equal(t, []string{"done", "half "}, r.Lines())
	require.Equal(t, 1, r.flushes)
	require.Equal(t, int64(2), m.Snapshot().TruncatedBytes)
	require.Zero(t, m.Snapshot().DecodeErrors)

	var fe *FramingError
	require.ErrorAs(t, f.Finish(), &fe)
	require.Equal(t, FramingErrorMisuse, fe.Kind)
}

func TestFramer_FinishTruncatedCleanTail(t *testing.T) {
	m := metrics.NewCollector("Shift_JIS", "lines", "")
	r := &recorder{}
	f := NewFramer(r, WithCodec(codec.MustLookup("Shift_JIS")), WithCollector(m))

	// 0x93 0xfa is 日; the stream stops after its lead byte.
	require.NoError(t, f.Feed([]byte("ok\r\nab\x93")))
	require.NoError(t, f.FinishTruncated())

	require.Equal(t, []string{"ok", "ab"}, r.Lines())
	require.Equal(t, int64(1), m.Snapshot().TruncatedBytes)

	// Nothing held: identical to Finish.
	r2 := &recorder{}
	f2 := NewFramer(r2)
	feedAll(t, f2, "a\nb")
	require.NoError(t, f2.FinishTruncated())
	require.Equal(t, []string{"a", "b"}, r2.Lines())
	require.Equal(t, 1, r2.flushes)
}

func TestFramer_FinishTruncatedAfterDecodeError(t *testing.T) {
	r := &recorder{}
	f := NewFramer(r)

	err := f.Feed([]byte("ok\n\xff"))
	require.True(t, IsDecodeError(err))
	require.Equal(t, err, f.FinishTruncated())
	require.Zero(t, r.flushes)
}

func TestFramer_ReceiverError(t *testing.T) {
	boom := errors.New("boom")
	var got []string
	recv := ReceiverFunc(func(line string) error {
		if line == "bad" {
			return boom
		}
		got = append(got, line)
		return nil
	})
	f := NewFramer(recv)

	err := f.Feed([]byte("a\nbad\nc\n"))
	require.True(t, IsReceiverError(err))
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"a"}, got)

	require.Equal(t, err, f.Finish())
}

type failingFlush struct {
	LineCollector
}

func (failingFlush) Flush() error { return errors.New("disk full") }

func TestFramer_FlushError(t *testing.T) {
	f := NewFramer(&failingFlush{})
	feedAll(t, f, "x")

	err := f.Finish()
	require.True(t, IsReceiverError(err))
	require.EqualError(t, err, "flush: disk full")
}

func TestFramer_Codec(t *testing.T) {
	t.Run("windows-1252", func(t *testing.T) {
		r := &recorder{}
		f := NewFramer(r, WithCodec(codec.MustLookup("windows-1252")))
		require.NoError(t, f.Feed([]byte("caf\xe9 \x80\r\n")))
		require.NoError(t, f.Finish())
		require.Equal(t, []string{"café €"}, r.Lines())
	})

	t.Run("utf-16le split mid code unit", func(t *testing.T) {
		r := &recorder{}
		f := NewFramer(r, WithCodec(codec.MustLookup("UTF-16LE")))
		data := []byte{'h', 0, 'i', 0, '\r', 0, '\n', 0, 'x', 0}
		for i := range data {
			require.NoError(t, f.Feed(data[i:i+1]))
		}
		require.NoError(t, f.Finish())
		require.Equal(t, []string{"hi", "x"}, r.Lines())
	})

	t.Run("process default", func(t *testing.T) {
		latin1 := codec.MustLookup("ISO-8859-1")
		prev := codec.SetDefault(latin1)
		t.Cleanup(func() { codec.SetDefault(prev) })

		f := NewFramer(&recorder{})
		require.Same(t, latin1, f.Codec())
	})
}

func TestFramer_SplitInvarianceMultiByteCodecs(t *testing.T) {
	tests := []struct {
		encoding string
		text     string
		want     []string
	}{
		{"Shift_JIS", "日本語\r\nテスト\rｶﾅ", []string{"日本語", "テスト", "ｶﾅ"}},
		{"GB18030", "中文\n😀 表情\r\n尾", []string{"中文", "😀 表情", "尾"}},
		{"EUC-KR", "한국어\n줄", []string{"한국어", "줄"}},
		{"UTF-16LE", "a😀b\r\n😀", []string{"a😀b", "😀"}},
		{"UTF-16BE", "x\n😀\ry", []string{"x", "😀", "y"}},
		{"windows-1252", "caf\u00e9\n\u20ac 5", []string{"café", "€ 5"}},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			c := codec.MustLookup(tt.encoding)
			input, err := c.Encode(tt.text)
			require.NoError(t, err)

			run := func(chunks ...[]byte) []string {
				r := &recorder{}
				f := NewFramer(r, WithCodec(c))
				for _, chunk := range chunks {
					require.NoError(t, f.Feed(chunk))
				}
				require.NoError(t, f.Finish())
				return r.Lines()
			}

			require.Equal(t, tt.want, run(input))
			for i := 0; i <= len(input); i++ {
				require.Equal(t, tt.want, run(input[:i], input[i:]), "split at %d", i)
			}
			for i := 0; i <= len(input); i++ {
				for j := i; j <= len(input); j++ {
					require.Equal(t, tt.want, run(input[:i], input[i:j], input[j:]), "split at %d,%d", i, j)
				}
			}

			single := make([][]byte, 0, len(input))
			for i := range input {
				single = append(single, input[i:i+1])
			}
			require.Equal(t, tt.want, run(single...))
		})
	}
}

func TestFramer_Metrics(t *testing.T) {
	m := metrics.NewCollector("UTF-8", "lines", "")
	f := NewFramer(&recorder{}, WithCollector(m))

	feedAll(t, f, "a\nb", "\nc")
	require.NoError(t, f.Finish())

	s := m.Snapshot()
	require.Equal(t, int64(2), s.ChunksFed)
	require.Equal(t, int64(5), s.BytesFed)
	require.Equal(t, int64(3), s.LinesEmitted)
	require.Equal(t, int64(1), s.FlushesEmitted)
	require.Equal(t, int64(5), f.Offset())
}
