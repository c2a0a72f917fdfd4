package variantcache

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
)

func TestGetOrBuildCachesOnFirstCall(t *testing.T) {
	c := New()
	key := NewKey("pbr", GraphicsState{DepthTestEnabled: true}, ConstantBytes(0))

	builds := 0
	build := func() (pipeline.Pipeline, error) {
		builds++
		return pipeline.NewPipeline("pbr", pipeline.PipelineTypeRender), nil
	}

	p1, err := c.GetOrBuild(key, build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := c.GetOrBuild(key, build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if builds != 1 {
		t.Fatalf("expected exactly 1 build call, got %d", builds)
	}
	if p1 != p2 {
		t.Fatal("expected the same cached pipeline to be returned")
	}
}

func TestDifferentGraphicsStateProducesDifferentKey(t *testing.T) {
	k1 := NewKey("pbr", GraphicsState{DepthTestEnabled: true}, ConstantBytes(0))
	k2 := NewKey("pbr", GraphicsState{DepthTestEnabled: false}, ConstantBytes(0))
	if k1 == k2 {
		t.Fatal("expected differing DepthTestEnabled to produce distinct keys")
	}
}

func TestDifferentConstantsProduceDifferentKey(t *testing.T) {
	k1 := NewKey("skin", GraphicsState{}, ConstantBytes(1))
	k2 := NewKey("skin", GraphicsState{}, ConstantBytes(2))
	if k1 == k2 {
		t.Fatal("expected differing specialization constants to produce distinct keys")
	}
}

func TestSameInputsProduceSameKey(t *testing.T) {
	state := GraphicsState{CullMode: wgpu.CullModeBack, Topology: wgpu.PrimitiveTopologyTriangleList}
	k1 := NewKey("pbr", state, ConstantBytes(3, 4))
	k2 := NewKey("pbr", state, ConstantBytes(3, 4))
	if k1 != k2 {
		t.Fatal("expected identical inputs to hash to the same key")
	}
}

func TestGetOrBuildPropagatesBuildError(t *testing.T) {
	c := New()
	key := NewKey("broken", GraphicsState{}, nil)
	wantErr := errors.New("shader compile failed")

	_, err := c.GetOrBuild(key, func() (pipeline.Pipeline, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected build error to propagate, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("expected a failed build not to populate the cache")
	}
}
