package context

import "testing"

func TestDownsampleMonoPicksExactlyNSamples(t *testing.T) {
	src := make([]float32, 100)
	for i := range src {
		src[i] = float32(i) / 100
	}

	out := downsampleMono(src, 10)
	if len(out) != 10 {
		t.Fatalf("len(out) = %d, want 10", len(out))
	}
}

func TestDownsampleMonoEmptySourceReturnsSilence(t *testing.T) {
	out := downsampleMono(nil, 5)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %d, want 0 for empty source", i, s)
		}
	}
}

func TestDownsampleStereoToMonoAveragesChannels(t *testing.T) {
	src := []float32{1, -1, 1, -1} // two stereo pairs, L=1 R=-1 each
	out := downsampleStereoToMono(src, 2)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %d, want 0 (average of +1/-1)", i, s)
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	if got := float32ToPCM16(2.0); got != 32767 {
		t.Fatalf("float32ToPCM16(2.0) = %d, want clamped 32767", got)
	}
	if got := float32ToPCM16(-2.0); got != -32767 {
		t.Fatalf("float32ToPCM16(-2.0) = %d, want clamped -32767", got)
	}
}
