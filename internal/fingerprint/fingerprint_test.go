package fingerprint

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = []Backend{BackendGoDSP, BackendGonum}

func toneSamples(n, bin, windows int, amplitude float64) []int {
	samples := make([]int, n*windows)
	for i := range samples {
		samples[i] = int(math.Round(amplitude * math.Cos(2*math.Pi*float64(bin)*float64(i)/float64(n))))
	}
	return samples
}

func run(t *testing.T, config Config, sampleRate int, samples []int) *SongFingerprint {
	t.Helper()
	f, err := New(config, sampleRate)
	require.NoError(t, err)
	fp, err := f.Run(context.Background(), newSliceSource(samples))
	require.NoError(t, err)
	return fp
}

func TestTransformReferenceInput(t *testing.T) {
	want := []complex128{8, complex(-1, -5), -2, complex(-1, 5)}

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			tr, err := NewTransformer(backend, 4)
			require.NoError(t, err)

			spectrum := tr.Transform(nil, []float64{1, 5, 2, 0})
			require.Len(t, spectrum, 4)
			for k := range want {
				assert.InDelta(t, real(want[k]), real(spectrum[k]), 1e-9, "bin %d", k)
				assert.InDelta(t, imag(want[k]), imag(spectrum[k]), 1e-9, "bin %d", k)
			}

			// 复用输出缓冲区时结果不变
			again := tr.Transform(spectrum, []float64{1, 5, 2, 0})
			assert.InDelta(t, 8.0, real(again[0]), 1e-9)
		})
	}
}

func TestTransformLengthMismatchPanics(t *testing.T) {
	for _, backend := range backends {
		tr, err := NewTransformer(backend, 8)
		require.NoError(t, err)
		assert.Panics(t, func() { tr.Transform(nil, make([]float64, 4)) })
	}
}

func TestReferenceScenario(t *testing.T) {
	// N=4, 4Hz, 采样 [1, 5, 2, 0]
	// 频谱 [8, -1-5i, -2, -1+5i]: 两种评分都在频点0取得最大值
	for _, backend := range backends {
		for _, mode := range []MagnitudeMode{MagnitudeModulus, MagnitudeReal} {
			t.Run(string(backend)+"/"+string(mode), func(t *testing.T) {
				config := Config{
					WindowSize: 4,
					Bands:      []BandSpec{binBand(0, 4)},
					Magnitude:  mode,
					Backend:    backend,
				}
				fp := run(t, config, 4, []int{1, 5, 2, 0})

				require.Len(t, fp.Frames, 1)
				assert.Equal(t, 0.0, fp.Frames[0].Timestamp)
				assert.Equal(t, []int{0}, fp.Frames[0].Peaks)
			})
		}
	}
}

func TestReferenceScenarioUpperBins(t *testing.T) {
	// 频点2、3的实部都是负数，只用实部时找不到峰值
	config := Config{
		WindowSize: 4,
		Bands:      []BandSpec{binBand(2, 2)},
	}

	for _, backend := range backends {
		config.Backend = backend

		config.Magnitude = MagnitudeModulus
		fp := run(t, config, 4, []int{1, 5, 2, 0})
		assert.Equal(t, []int{3}, fp.Frames[0].Peaks)

		config.Magnitude = MagnitudeReal
		fp = run(t, config, 4, []int{1, 5, 2, 0})
		assert.Equal(t, []int{NoPeak}, fp.Frames[0].Peaks)
	}
}

func TestPureToneFindsBin(t *testing.T) {
	const n = 1024
	samples := toneSamples(n, 100, 3, 10000)

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			config := DefaultConfig()
			config.WindowSize = n
			config.Backend = backend
			fp := run(t, config, 8000, samples)

			require.Len(t, fp.Frames, 3)
			for _, frame := range fp.Frames {
				require.Len(t, frame.Peaks, 5)
				assert.Equal(t, 100, frame.Peaks[1])
				for i, p := range frame.Peaks {
					if p == NoPeak {
						continue
					}
					assert.True(t, fp.Bands[i].Contains(p), "band %d peak %d", i, p)
				}
			}
		})
	}
}

func TestPureToneHzBands(t *testing.T) {
	const n = 1024
	// 8000Hz、1024点时频点100 = 781.25Hz
	samples := toneSamples(n, 100, 2, 8000)
	config := Config{
		WindowSize: n,
		Bands: []BandSpec{
			{Lower: 300, Length: 400, Unit: UnitHz},
			{Lower: 700, Length: 300, Unit: UnitHz},
		},
	}

	fp := run(t, config, 8000, samples)
	require.Len(t, fp.Frames, 2)
	assert.Equal(t, 100, fp.Frames[0].Peaks[1])
	assert.InDelta(t, 781.25, BinFrequency(fp.Frames[0].Peaks[1], 8000, n), 1e-9)
}

func TestFrameCountIsCeiling(t *testing.T) {
	const n = 16
	config := Config{WindowSize: n, Bands: []BandSpec{binBand(1, 4)}}

	for _, m := range []int{0, 1, n - 1, n, n + 1, 5*n + 3, 7 * n} {
		fp := run(t, config, 100, make([]int, m))
		want := (m + n - 1) / n
		assert.Len(t, fp.Frames, want, "m=%d", m)
	}
}

func TestTimestampsAdvanceByFrameDuration(t *testing.T) {
	const (
		n          = 64
		sampleRate = 44100
	)
	config := Config{WindowSize: n, Bands: []BandSpec{binBand(1, 8)}}
	rng := rand.New(rand.NewSource(7))
	samples := make([]int, 20*n+5)
	for i := range samples {
		samples[i] = rng.Intn(2000) - 1000
	}

	fp := run(t, config, sampleRate, samples)
	require.Len(t, fp.Frames, 21)

	step := float64(n) / float64(sampleRate)
	assert.InDelta(t, step, fp.FrameDuration(), 1e-15)
	assert.Equal(t, 0.0, fp.Frames[0].Timestamp)
	for i := 1; i < len(fp.Frames); i++ {
		diff := fp.Frames[i].Timestamp - fp.Frames[i-1].Timestamp
		assert.Greater(t, diff, 0.0)
		assert.InDelta(t, step, diff, 1e-12)
	}
}

func randomSamples(seed int64, count int) []int {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]int, count)
	for i := range samples {
		samples[i] = rng.Intn(65536) - 32768
	}
	return samples
}

func TestRunIsDeterministic(t *testing.T) {
	config := Config{
		WindowSize: 256,
		Bands:      []BandSpec{binBand(10, 10), binBand(20, 20), binBand(40, 60)},
	}
	samples := randomSamples(42, 10*256+37)

	first := run(t, config, 22050, samples)
	second := run(t, config, 22050, samples)
	assert.Equal(t, first, second)
}

func TestParallelMatchesSequential(t *testing.T) {
	samples := randomSamples(1, 33*128+5)

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			config := Config{
				WindowSize: 128,
				Bands:      []BandSpec{binBand(2, 6), binBand(8, 16), binBand(24, 40)},
				Backend:    backend,
			}
			sequential := run(t, config, 16000, samples)

			config.Workers = 4
			parallel := run(t, config, 16000, samples)

			require.Len(t, parallel.Frames, 34)
			assert.Equal(t, sequential.Frames, parallel.Frames)
		})
	}
}

func TestRunAbortsOnReadError(t *testing.T) {
	for _, workers := range []int{1, 3} {
		config := Config{WindowSize: 8, Bands: []BandSpec{binBand(1, 3)}, Workers: workers}
		f, err := New(config, 8000)
		require.NoError(t, err)

		src := newSliceSource(make([]int, 100))
		src.step = 8
		src.failAt = 40

		fp, err := f.Run(context.Background(), src)
		assert.Nil(t, fp)
		assert.ErrorIs(t, err, ErrSourceRead)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	f, err := New(Config{WindowSize: 8, Bands: []BandSpec{binBand(1, 3)}}, 8000)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fp, err := f.Run(ctx, newSliceSource(make([]int, 64)))
	assert.Nil(t, fp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		sampleRate int
		want       error
	}{
		{"zero window", Config{WindowSize: 0}, 44100, ErrInvalidConfig},
		{"negative window", Config{WindowSize: -8}, 44100, ErrInvalidConfig},
		{"zero sample rate", Config{WindowSize: 1024}, 0, ErrInvalidConfig},
		{"default bands beyond small window", Config{WindowSize: 256}, 44100, ErrInvalidBand},
		{"unknown magnitude", Config{WindowSize: 1024, Magnitude: "power"}, 44100, ErrInvalidConfig},
		{"unknown backend", Config{WindowSize: 1024, Backend: "fftw"}, 44100, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, tt.sampleRate)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAssembleCopiesPeaks(t *testing.T) {
	bands := []FrequencyBand{{Lower: 0, Length: 4, PeakAt: 2}, {Lower: 4, Length: 4, PeakAt: NoPeak}}
	frame := Assemble(bands, 1.5)

	bands[0].PeakAt = 3
	assert.Equal(t, []int{2, NoPeak}, frame.Peaks)
	assert.Equal(t, 1.5, frame.Timestamp)
}

func TestFingerprinterBandsAreCopies(t *testing.T) {
	f, err := New(DefaultConfig(), 44100)
	require.NoError(t, err)

	bands := f.Bands()
	bands[0].Lower = 999
	assert.Equal(t, 40, f.Bands()[0].Lower)
}
