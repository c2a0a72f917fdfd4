package main

import (
	"fmt"
	"log"
	"math"

	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine"
	"github.com/oxy-go/renderer-core/engine/camera"
	"github.com/oxy-go/renderer-core/engine/light"
	"github.com/oxy-go/renderer-core/engine/model"
	"github.com/oxy-go/renderer-core/engine/renderer"
	"github.com/oxy-go/renderer-core/engine/renderer/material"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
	"github.com/oxy-go/renderer-core/engine/renderer/probe"
	"github.com/oxy-go/renderer-core/engine/renderer/shader"
	"github.com/oxy-go/renderer-core/engine/scene"
	"github.com/oxy-go/renderer-core/engine/window"
)

// main wires a minimal deferred scene end to end: one opaque cube, one
// directional shadow-casting light, and a picking pass, exercising the
// G-buffer / lighting / shadow / pick stages a real caller would drive.
func main() {
	eng := engine.NewEngine(
		engine.WithProfiling(true),
		engine.WithTickRate(60),
		engine.WithWindow(window.NewWindow(
			window.WithTitle("Oxy Engine - Sandbox"),
			window.WithWidth(1920),
			window.WithHeight(1080),
		)),
	)

	r := renderer.NewRenderer(
		renderer.BackendTypeWGPU,
		eng.Window(),
		renderer.WithPresentMode(renderer.PresentModeUncapped),
	)

	cam := camera.NewCamera(
		camera.WithFov(float32(45.0*math.Pi/180.0)),
		camera.WithAspect(float32(eng.Window().Width())/float32(eng.Window().Height())),
		camera.WithNear(0.01),
		camera.WithFar(10000),
		camera.WithController(camera.NewCameraController(
			camera.WithRadius(20),
			camera.WithTarget(0, 0, 0),
			camera.WithElevation(0.3),
			camera.WithAzimuth(0.5),
			camera.WithPanSpeed(1.0),
			camera.WithRadiusBounds(1, 2000),
			camera.WithZoomSpeed(16.0),
			camera.WithMouseSensitivity(0.002),
		)),
	)

	gbufferVert := shader.NewShader("gbuffer_vert", shader.ShaderTypeVertex, "cmd/sandbox/assets/shaders/gbuffer-vert.wgsl")
	gbufferFrag := shader.NewShader("gbuffer_frag", shader.ShaderTypeFragment, "cmd/sandbox/assets/shaders/gbuffer-frag.wgsl")
	lightingVert := shader.NewShader("lighting_vert", shader.ShaderTypeVertex, "cmd/sandbox/assets/shaders/lighting-vert.wgsl")
	lightingFrag := shader.NewShader("lighting_frag", shader.ShaderTypeFragment, "cmd/sandbox/assets/shaders/lighting-frag.wgsl")
	shadowVert := shader.NewShader("shadow_vert", shader.ShaderTypeVertex, "cmd/sandbox/assets/shaders/shadow-vert.wgsl")
	shadowSkinnedVert := shader.NewShader("shadow_skinned_vert", shader.ShaderTypeVertex, "cmd/sandbox/assets/shaders/shadow-skinned-vert.wgsl")
	cullCompute := shader.NewShader("light_cull_compute", shader.ShaderTypeCompute, "cmd/sandbox/assets/shaders/light-cull-compute.wgsl")

	sc := scene.NewScene("Sandbox", cam, r, gbufferVert,
		scene.WithActive(true),
		scene.WithShadowMapResolution(2048),
	)

	const gbufferKey = "cube_gbuffer"
	gbufferPipeline := pipeline.NewPipeline(gbufferKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(gbufferVert),
		pipeline.WithFragmentShader(gbufferFrag),
		pipeline.WithDepthTestEnabled(true),
		pipeline.WithDepthWriteEnabled(true),
	)
	if err := r.RegisterPipelines(gbufferPipeline); err != nil {
		log.Fatalf("failed to register gbuffer pipeline: %v", err)
	}

	width, height := int(eng.Window().Width()), int(eng.Window().Height())
	if err := sc.InitGBuffer(width, height); err != nil {
		log.Fatalf("failed to init gbuffer: %v", err)
	}
	if err := sc.InitDeferredLighting(lightingVert, lightingFrag); err != nil {
		log.Fatalf("failed to init deferred lighting: %v", err)
	}
	if err := sc.InitPicking(3, width, height); err != nil {
		log.Fatalf("failed to init picking: %v", err)
	}

	sc.InitLightBindGroup(gbufferFrag)
	sc.InitShadowMap(shadowVert, shadowSkinnedVert)
	sc.InitLighting(lightingFrag, shadowVert, shadowSkinnedVert, cullCompute, width, height)

	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(-0.4, -1, -0.3),
		light.WithColor(1, 0.95, 0.85),
		light.WithIntensity(3.0),
		light.WithCastsShadows(true),
		light.WithEnabled(true),
	)
	sc.AddLight(sun)

	brdfLUTCompute := shader.NewShader("probe_brdf_lut_compute", shader.ShaderTypeCompute, "cmd/sandbox/assets/shaders/probe-brdf-lut-compute.wgsl")
	lambertianCompute := shader.NewShader("probe_lambertian_compute", shader.ShaderTypeCompute, "cmd/sandbox/assets/shaders/probe-lambertian-compute.wgsl")
	ggxCompute := shader.NewShader("probe_ggx_compute", shader.ShaderTypeCompute, "cmd/sandbox/assets/shaders/probe-ggx-compute.wgsl")
	if err := sc.InitProbes(brdfLUTCompute, lambertianCompute, ggxCompute); err != nil {
		log.Fatalf("failed to init probes: %v", err)
	}

	probeEntity := sc.CreateEntity()
	sc.AddProbe(probe.NewProbe(probeEntity, [3]float32{0, 2, 0}, 50, 128, 32))

	cubeVerts, cubeIdx := buildCube()
	cubeModel := model.NewModel(
		model.WithName("sandbox_cube"),
		model.WithBoundingRadius(1.0),
		model.WithVertexData(common.SliceToBytes(cubeVerts)),
		model.WithIndexData(common.SliceToBytes(cubeIdx)),
		model.WithIndexCount(len(cubeIdx)),
	)
	cubeMaterial := material.NewMaterial(
		material.WithName("sandbox_cube"),
		material.WithPipelineKey(gbufferKey),
		material.WithBaseColor([4]float32{0.8, 0.2, 0.2, 1}),
		material.WithMetallic(0.1),
		material.WithRoughness(0.6),
	)

	cubeEntity := sc.CreateEntity()
	sc.AddDrawableObjects([]scene.DrawableInput{
		{
			Entity:   cubeEntity,
			Mesh:     model.NewMeshSource(cubeModel),
			Material: cubeMaterial,
			Transform: scene.Transform{
				Position: [3]float32{0, 0, 0},
				Scale:    [3]float32{4, 4, 4},
			},
			LocalBounds:  common.AABB{Min: [3]float32{-0.5, -0.5, -0.5}, Max: [3]float32{0.5, 0.5, 0.5}},
			MainShader:   gbufferKey,
			ShadowShader: gbufferKey,
		},
	}, nil)

	if err := sc.FinalizeScene(); err != nil {
		log.Fatalf("failed to finalize scene: %v", err)
	}

	eng.AddScene(0, sc)
	setupInput(eng, cam, sc)

	fmt.Println("Oxy Engine - Sandbox running (WASD pan, middle-mouse orbit, scroll zoom, space to pick center)")
	log.Println("Starting Oxy Engine Sandbox")
	eng.Run()
}

// setupInput wires camera controls and a screen-center pick request on space.
func setupInput(eng engine.Engine, cam camera.Camera, sc scene.Scene) {
	keyState := make(map[uint32]bool)

	eng.Window().SetKeyDownCallback(func(keyCode uint32) {
		keyState[keyCode] = true
	})
	eng.Window().SetKeyUpCallback(func(keyCode uint32) {
		keyState[keyCode] = false
	})

	var dragging bool
	var lastX, lastY int32

	eng.Window().SetMiddleMouseDownCallback(func(x, y int32) {
		dragging = true
		lastX, lastY = x, y
	})
	eng.Window().SetMiddleMouseUpCallback(func(_, _ int32) {
		dragging = false
	})
	eng.Window().SetMouseMoveCallback(func(x, y int32) {
		if !dragging {
			return
		}
		dx := float32(x - lastX)
		dy := float32(y - lastY)
		cam.Controller().SetAzimuth(cam.Controller().Azimuth() + dx*cam.Controller().MouseSensitivity())
		cam.Controller().SetElevation(cam.Controller().Elevation() - dy*cam.Controller().MouseSensitivity())
		lastX, lastY = x, y
	})
	eng.Window().SetScrollCallback(func(delta float32) {
		cam.Controller().Zoom(delta)
	})

	width, height := int(eng.Window().Width()), int(eng.Window().Height())
	eng.SetTickCallback(func(_ float32) {
		if err := sc.UpdateProbes(); err != nil {
			log.Printf("probe update failed: %v", err)
		}
		if keyState[common.KeySpace] {
			sc.RequestPick(width/2, height/2)
		}
		if keyState[common.KeyW] {
			cam.Controller().PanForward(1)
		}
		if keyState[common.KeyS] {
			cam.Controller().PanForward(-1)
		}
		if keyState[common.KeyA] {
			cam.Controller().PanRight(-1)
		}
		if keyState[common.KeyD] {
			cam.Controller().PanRight(1)
		}
		if keyState[common.KeyQ] {
			cam.Controller().PanUp(1)
		}
		if keyState[common.KeyE] {
			cam.Controller().PanUp(-1)
		}
		if entity, ok := sc.GetPickedEntity(); ok {
			log.Printf("picked entity: %v", entity)
		}
	})
}

// buildCube returns 8 vertices and 36 indices forming a unit cube, all
// outward faces winding counter-clockwise.
func buildCube() ([]model.GPUVertex, []uint32) {
	pos := [8][3]float32{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5},
		{0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5},
		{0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	col := [8][4]float32{
		{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 0, 1},
		{0, 1, 1, 1}, {1, 0, 1, 1}, {1, 1, 1, 1}, {1, 0.5, 0, 1},
	}

	vertices := make([]model.GPUVertex, 8)
	for i := 0; i < 8; i++ {
		vertices[i] = model.GPUVertex{Position: pos[i], Color: col[i]}
	}

	indices := []uint32{
		4, 5, 6, 4, 6, 7, // Front  (+Z)
		1, 0, 3, 1, 3, 2, // Back   (-Z)
		5, 1, 2, 5, 2, 6, // Right  (+X)
		0, 4, 7, 0, 7, 3, // Left   (-X)
		3, 7, 6, 3, 6, 2, // Top    (+Y)
		0, 1, 5, 0, 5, 4, // Bottom (-Y)
	}

	return vertices, indices
}
