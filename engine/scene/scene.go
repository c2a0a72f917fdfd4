package scene

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine/camera"
	"github.com/oxy-go/renderer-core/engine/ecs"
	"github.com/oxy-go/renderer-core/engine/light"
	"github.com/oxy-go/renderer-core/engine/renderer"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
	"github.com/oxy-go/renderer-core/engine/renderer/bindless"
	"github.com/oxy-go/renderer-core/engine/renderer/drawable"
	"github.com/oxy-go/renderer-core/engine/renderer/material"
	"github.com/oxy-go/renderer-core/engine/renderer/pick"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
	"github.com/oxy-go/renderer-core/engine/renderer/probe"
	"github.com/oxy-go/renderer-core/engine/renderer/rendergraph"
	"github.com/oxy-go/renderer-core/engine/renderer/shader"
	"github.com/oxy-go/renderer-core/engine/renderer/shadowatlas"
	"github.com/oxy-go/renderer-core/engine/renderer/skin"
	"github.com/oxy-go/renderer-core/engine/renderer/variantcache"
)

// Transform is a drawable's CPU-side placement, in the same Euler-angle
// convention as common.BuildModelMatrix.
type Transform struct {
	Position [3]float32
	Rotation [3]float32 // radians
	Scale    [3]float32
}

// DrawableInput is the caller-supplied description of one renderable
// primitive, staged into the scene's drawable registry by AddDrawableObjects.
type DrawableInput struct {
	Entity       ecs.Entity
	Mesh         drawable.MeshSource
	Material     material.Material
	Transform    Transform
	LocalBounds  common.AABB
	ProbeTagged  bool
	MainShader   string // pipeline key used for the G-buffer/forward pass
	ProbeShader  string // pipeline key used when capturing environment probes
	ShadowShader string // pipeline key used for the shadow depth pass
}

// Scene manages a collection of ECS-addressed drawable primitives packed into
// shared GPU buffers (engine/renderer/drawable), alongside the lighting,
// shadow, and Forward+ tile-culling state needed to render them. It owns a
// Camera and Renderer and is hot-swappable via the Active flag.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	SetCamera(cam camera.Camera)

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// SetRenderer replaces the scene's renderer.
	SetRenderer(r renderer.Renderer)

	// CreateEntity allocates a new ECS entity handle for a future drawable.
	CreateEntity() ecs.Entity

	// DestroyEntity recycles an entity's slot. A destroyed entity's packed
	// Drawable (if any) is skipped by every subsequent pass without requiring
	// an immediate buffer rebuild. FinalizeScene does not remove it from the
	// packed list, so its GPU storage stays allocated.
	DestroyEntity(e ecs.Entity)

	// AddDrawableObjects stages opaque and transparent primitives for the next
	// FinalizeScene call. The opaque/transparent split only affects default
	// pipeline-state routing via classify; it does not itself move geometry
	// between storage arrays.
	AddDrawableObjects(opaque, transparent []DrawableInput)

	// FinalizeScene packs every staged primitive into the scene's shared
	// vertex/index/secondary-stream buffers and material table, then uploads
	// the resulting buffers to the GPU. Must be called at least once before
	// rendering, and again after any AddDrawableObjects call.
	FinalizeScene() error

	// UpdateSceneMaterials re-derives the packed GpuMaterial entries for the
	// materials attached to the given entities and re-uploads the material
	// table buffer. No-op for entities whose material was never indexed.
	UpdateSceneMaterials(entities []ecs.Entity) error

	// Transform returns an entity's current CPU-side transform.
	Transform(e ecs.Entity) (Transform, bool)

	// SetTransform updates an entity's CPU-side transform, applied on the
	// next PrepareCompute.
	SetTransform(e ecs.Entity, t Transform)

	// PrepareCompute updates camera matrices, advances skinned-drawable
	// animation state, recomputes per-drawable visibility via SAT frustum
	// culling, and uploads the resulting transform/light buffers. Must be
	// called once per frame before PrepareShadows/DrawGBuffer.
	PrepareCompute(deltaTime float32)

	// CullingDisabled returns whether frustum culling is explicitly disabled.
	CullingDisabled() bool

	// SetCullingDisabled enables or disables frustum culling for this scene.
	SetCullingDisabled(disabled bool)

	// InitGBuffer creates the scene's G-buffer render targets at the given
	// resolution. Must be called before DrawGBuffer or DrawLightingPass.
	InitGBuffer(width, height int) error

	// DrawGBuffer issues one draw call per visible deferred drawable into the
	// G-buffer targets. Must be called within a BeginFrame/EndFrame block.
	DrawGBuffer() error

	// InitDeferredLighting registers the full-screen lighting-resolve
	// pipeline from the given shader pair.
	InitDeferredLighting(vertexShader, fragmentShader shader.Shader) error

	// DrawLightingPass resolves the G-buffer into the lit frame using the
	// scene's light, shadow, and Forward+ tile bind groups.
	DrawLightingPass() error

	// DrawForward issues forward-pass draw calls for visible transparent
	// and probe-lit drawables directly into the lit frame.
	DrawForward() error

	// InitPicking creates the pick render target and readback ring at the
	// given resolution.
	InitPicking(framesInFlight, width, height int) error

	// RequestPick queues an entity-id readback at the given framebuffer pixel.
	RequestPick(x, y int)

	// DrawPick renders every visible drawable's entity id into the pick
	// target for the currently advancing pick request.
	DrawPick() error

	// SelectEntities marks the given entities as selected (for an outline or
	// highlight pass); pass nil to clear the selection.
	SelectEntities(entities []ecs.Entity)

	// GetPickedEntity returns the most recently resolved pick result, if the
	// readback ring has a ready frame.
	GetPickedEntity() (ecs.Entity, bool)

	// LoadSkyboxFromPanorama decodes an equirectangular panorama image into a
	// 6-face cubemap and registers it in the scene's bindless cubemap table.
	LoadSkyboxFromPanorama(path string, faceResolution int) error

	// AddProbe registers an environment probe in the scene. Its faces are
	// marked dirty and captured on the next Render cycle that services probes.
	AddProbe(p *probe.EnvironmentProbe)

	// RemoveProbe unregisters the probe owned by entity, if any.
	RemoveProbe(entity ecs.Entity)

	// Probe returns the probe owned by entity, if any.
	Probe(entity ecs.Entity) (*probe.EnvironmentProbe, bool)

	// Probes returns every environment probe currently registered in the scene.
	Probes() []*probe.EnvironmentProbe

	// InitProbes assigns the prefilter compute shaders and allocates the
	// bind group every registered probe's BRDF LUT / lambertian / GGX
	// dispatches write through.
	InitProbes(brdfLUTShader, lambertianShader, ggxShader shader.Shader) error

	// UpdateProbes captures and re-prefilters every probe that is due this
	// frame.
	UpdateProbes() error

	// AddLight adds a light source to the scene.
	AddLight(l light.Light)

	// RemoveLight removes a light source from the scene by reference.
	RemoveLight(l light.Light)

	// Lights returns all lights currently registered in the scene.
	Lights() []light.Light

	// AmbientColor returns the scene's ambient light color.
	AmbientColor() [3]float32

	// SetAmbientColor sets the scene's ambient light color.
	SetAmbientColor(color [3]float32)

	// LightBindGroupProvider returns the bind group provider holding the GPU
	// light buffer resources, or nil if no light shader has been configured.
	LightBindGroupProvider() bind_group_provider.BindGroupProvider

	// InitLightBindGroup initializes the GPU resources for the light storage
	// buffer using the layout descriptor from the given fragment shader's
	// light group.
	InitLightBindGroup(fragmentShader shader.Shader)

	// InitShadowMap initializes the shadow mapping resources for the scene.
	InitShadowMap(shadowVertexShader, shadowSkinnedVertexShader shader.Shader)

	// PrepareShadows computes the directional light's cascade-atlas packing,
	// updates the shadow uniform buffer, and renders the depth-only shadow
	// pass for every shadow-casting drawable. No-op if no shadow map has been
	// initialized or no shadow-casting directional light exists.
	PrepareShadows()

	// ShadowDepthTextureView returns the shadow map depth texture view.
	ShadowDepthTextureView() *wgpu.TextureView

	// ShadowDataBindGroupProvider returns the BGP holding the shadow uniform.
	ShadowDataBindGroupProvider() bind_group_provider.BindGroupProvider

	// ShadowLitBindGroupProvider returns the BGP lit fragment shaders use to
	// sample the shadow map.
	ShadowLitBindGroupProvider() bind_group_provider.BindGroupProvider

	// InitShadowLitBindGroup initializes the bind group provider that lit
	// fragment shaders use to sample the shadow map.
	InitShadowLitBindGroup(litFragmentShader shader.Shader)

	// InitLightCullResources initializes the Forward+ light culling pipeline
	// and buffer resources.
	InitLightCullResources(cullComputeShader, litFragmentShader shader.Shader, screenWidth, screenHeight int)

	// PrepareLightCulling updates the light cull uniform buffer and dispatches
	// the light culling compute shader.
	PrepareLightCulling()

	// InitLighting initializes the entire lighting pipeline in the correct
	// order: light storage buffer, shadow map resources, shadow lit bind
	// group, and Forward+ light culling.
	InitLighting(litFragShader, shadowVertShader, shadowSkinnedVertShader, cullComputeShader shader.Shader, screenWidth, screenHeight int)

	// InitSkinning registers the skeletal joint-matrix compute shader used to
	// prepare skinned drawables each frame.
	InitSkinning(computeShader shader.Shader)

	// Render runs the scene's full per-frame render graph in order: skin +
	// culling (via PrepareCompute), shadow, g-buffer, lighting, forward, and
	// pick. PrepareCompute must be called once beforehand by the caller's
	// frame loop, since it also drives non-rendering state (e.g. physics
	// sync) that some callers need to run ahead of this. Must be called
	// within a BeginFrame/EndFrame block on the renderer.
	Render() error
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	cam camera.Camera
	r   renderer.Renderer

	cullingDisabled bool

	// ECS + drawable state.
	entities       *ecs.Registry
	drawables      *drawable.Registry
	buffers        drawable.Buffers
	materials      *drawable.MaterialTable
	bindlessTables *bindless.Tables
	skins          *skin.Manager
	variants       *variantcache.Cache

	transforms     map[ecs.Entity]Transform
	localBounds    map[ecs.Entity]common.AABB
	entityMaterial map[ecs.Entity]material.Material
	selected       map[ecs.Entity]struct{}

	textureHandles         map[*common.ImportedTexture]bindless.Handle
	nextTextureHandleIndex uint32

	visible []drawable.Drawable // recomputed each PrepareCompute

	meshProvider bind_group_provider.BindGroupProvider // shared position + index buffer
	drawDataBGP  bind_group_provider.BindGroupProvider // shared secondary-stream + material-table + transform-table storage

	skinComputeShader                                              shader.Shader
	skinUniformBinding, skinInstanceBinding, skinBoneBinding, skinModelBinding int

	// G-buffer / deferred-lighting state.
	gbufferTargets    *renderer.GBufferTargets
	gbufferWidth      int
	gbufferHeight     int
	lightingPipeKey   string

	// Pick state.
	pickTarget   *renderer.PickTarget
	pickRing     *pick.Ring
	pickedEntity ecs.Entity
	pickReady    bool

	// Skybox state.
	skyboxHandle bindless.Handle

	// Environment probe state.
	probes   *probe.Manager
	probeBGP bind_group_provider.BindGroupProvider

	// Lighting state.
	lights       []light.Light
	ambientColor [3]float32
	lightsBGP    bind_group_provider.BindGroupProvider

	// Shadow mapping state.
	shadowDepthTexture     *wgpu.Texture
	shadowDepthTextureView *wgpu.TextureView
	shadowComparisonSamp   *wgpu.Sampler
	shadowDataBGP          bind_group_provider.BindGroupProvider
	shadowLitBGP           bind_group_provider.BindGroupProvider
	shadowPipelineKey      string
	shadowSkinnedPipeKey   string
	shadowHalfExtent       float32
	shadowNear             float32
	shadowFar              float32
	shadowBias             float32
	shadowNormalBiasScale  float32
	shadowMapResolution    int
	shadowAtlasPacker      *shadowatlas.Packer

	// Forward+ light culling state.
	lightCullBGP         bind_group_provider.BindGroupProvider
	tileLitBGP           bind_group_provider.BindGroupProvider
	lightCullPipelineKey string
	tileCountX           uint32
	tileCountY           uint32
	screenWidth          int
	screenHeight         int

	writePool          []bind_group_provider.BufferWrite
	drawBindGroupsPool []bind_group_provider.BindGroupProvider

	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with the given camera, renderer, and a vertex
// shader used to discover the camera's bind group layout. All three are
// required and NewScene panics if any of them is nil.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - r: the renderer to attach (must not be nil)
//   - vertexShader: a vertex shader whose bind groups include the camera uniform layout (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, r renderer.Renderer, vertexShader shader.Shader, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	if r == nil {
		panic("scene: NewScene requires a non-nil Renderer")
	}
	if vertexShader == nil {
		panic("scene: NewScene requires a non-nil vertex shader for camera BGP init")
	}

	s := &scene{
		mu:                    &sync.RWMutex{},
		name:                  name,
		active:                false,
		cam:                   cam,
		r:                     r,
		entities:              ecs.NewRegistry(),
		drawables:             drawable.NewRegistry(),
		materials:             drawable.NewMaterialTable(),
		bindlessTables:        bindless.NewTables(),
		variants:              variantcache.New(),
		probes:                probe.NewManager(r),
		transforms:            make(map[ecs.Entity]Transform),
		localBounds:           make(map[ecs.Entity]common.AABB),
		entityMaterial:        make(map[ecs.Entity]material.Material),
		selected:              make(map[ecs.Entity]struct{}),
		textureHandles:        make(map[*common.ImportedTexture]bindless.Handle),
		computeWorkers:        max(runtime.NumCPU()-1, 1),
		drawBindGroupsPool:    make([]bind_group_provider.BindGroupProvider, 0, 3),
		shadowHalfExtent:      light.DefaultShadowHalfExtent,
		shadowNear:            light.DefaultShadowNear,
		shadowFar:             light.DefaultShadowFar,
		shadowBias:            light.DefaultShadowBias,
		shadowNormalBiasScale: light.DefaultShadowNormalBiasScale,
		shadowMapResolution:   light.ShadowMapResolution,
	}

	for _, option := range options {
		option(s)
	}

	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	s.skins = skin.NewManager(s.computeWorkers)
	s.shadowAtlasPacker = shadowatlas.NewPacker(uint32(s.shadowMapResolution))

	cameraGroup := 0
	for i, names := range vertexShader.BindGroupVarNames() {
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), "camera") {
				cameraGroup = i
				break
			}
		}
	}
	if bgp := cam.BindGroupProvider(); bgp != nil {
		if err := r.InitBindGroup(bgp, vertexShader.BindGroupLayoutDescriptor(cameraGroup), nil, nil); err != nil {
			panic(fmt.Sprintf("scene: failed to init camera bind group: %v", err))
		}
	}

	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) SetRenderer(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r = r
}

func (s *scene) CullingDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
}

func (s *scene) CreateEntity() ecs.Entity {
	return s.entities.Create()
}

func (s *scene) DestroyEntity(e ecs.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities.Destroy(e)
	delete(s.transforms, e)
	delete(s.localBounds, e)
	delete(s.entityMaterial, e)
	delete(s.selected, e)
}

func (s *scene) AddDrawableObjects(opaque, transparent []DrawableInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, group := range [][]DrawableInput{opaque, transparent} {
		for _, in := range group {
			s.drawables.Stage(in.Entity, in.Mesh, in.Material, in.ProbeTagged, in.MainShader, in.ProbeShader, in.ShadowShader)
			s.transforms[in.Entity] = in.Transform
			s.localBounds[in.Entity] = in.LocalBounds
			s.entityMaterial[in.Entity] = in.Material
		}
	}
}

// textureHandle returns a stable bindless.Handle for tex, allocating one on
// first sight since an ImportedTexture carries no entity identity of its own.
func (s *scene) textureHandle(tex *common.ImportedTexture) bindless.Handle {
	if tex == nil {
		return bindless.NullHandle
	}
	if h, ok := s.textureHandles[tex]; ok {
		return h
	}
	idx := s.nextTextureHandleIndex
	s.nextTextureHandleIndex++
	h := bindless.NewHandle(idx, 1)
	s.textureHandles[tex] = h
	if s.bindlessTables != nil && s.bindlessTables.Textures != nil {
		s.bindlessTables.Textures.Query(h)
	}
	return h
}

func (s *scene) resolveMaterialTextures(mat material.Material) (baseColor, normal, metallicRough, occlusion, emissive bindless.Handle) {
	baseColor = s.textureHandle(mat.DiffuseTexture())
	normal = s.textureHandle(mat.NormalTexture())
	metallicRough = s.textureHandle(mat.MetallicRoughnessTexture())
	occlusion = s.textureHandle(mat.OcclusionTexture())
	emissive = s.textureHandle(mat.EmissiveTexture())
	return
}

func (s *scene) nextSkinIndex() int32 {
	// The animator backing a skinned primitive's joint matrices is created
	// lazily by the loader and registered via InitSkinning's shader-driven
	// binding discovery; Finalize only needs a stable slot number here.
	return s.skins.Reserve(nil)
}

func (s *scene) FinalizeScene() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return fmt.Errorf("scene: FinalizeScene requires a renderer")
	}

	s.drawables.Finalize(&s.buffers, s.materials, s.resolveMaterialTextures, s.nextSkinIndex)

	if len(s.buffers.Positions) == 0 {
		return nil
	}

	vertexData := common.SliceToBytes(s.buffers.Positions)
	indexData := common.SliceToBytes(s.buffers.Indices)

	if s.meshProvider == nil {
		s.meshProvider = bind_group_provider.NewBindGroupProvider(s.name + "_mesh")
	}
	if err := s.r.InitMeshBuffers(s.meshProvider, vertexData, indexData, len(s.buffers.Indices)); err != nil {
		return fmt.Errorf("scene: failed to init mesh buffers: %w", err)
	}

	streamBytes := common.SliceToBytes(s.buffers.SecondaryStreams)
	transformBytes := s.marshalTransforms()
	materialBytes := common.SliceToBytes(s.materials.Entries)

	if s.drawDataBGP == nil {
		s.drawDataBGP = bind_group_provider.NewBindGroupProvider(s.name + "_draw_data")
	}
	desc := wgpu.BindGroupLayoutDescriptor{
		Label: s.name + "_draw_data_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageVertex, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
		},
	}
	sizeOverrides := map[int]uint64{
		0: uint64(max(len(streamBytes), 16)),
		1: uint64(max(len(materialBytes), 16)),
		2: uint64(max(len(transformBytes), 16)),
	}
	if err := s.r.InitBindGroup(s.drawDataBGP, desc, nil, sizeOverrides); err != nil {
		return fmt.Errorf("scene: failed to init draw-data bind group: %w", err)
	}

	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: s.drawDataBGP, Binding: 0, Offset: 0, Data: streamBytes},
		{Provider: s.drawDataBGP, Binding: 1, Offset: 0, Data: materialBytes},
		{Provider: s.drawDataBGP, Binding: 2, Offset: 0, Data: transformBytes},
	})

	// A newly staged drawable may fall within any existing probe's capture
	// radius, so conservatively mark every probe's six faces for re-capture.
	s.probes.MarkAllDirty()

	return nil
}

func (s *scene) UpdateSceneMaterials(entities []ecs.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.materials == nil || s.r == nil {
		return nil
	}

	for _, e := range entities {
		mat, ok := s.entityMaterial[e]
		if !ok || mat == nil {
			continue
		}
		s.materials.Refresh(mat, s.resolveMaterialTextures)
	}

	if s.drawDataBGP == nil {
		return nil
	}
	materialBytes := common.SliceToBytes(s.materials.Entries)
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: s.drawDataBGP, Binding: 1, Offset: 0, Data: materialBytes},
	})
	return nil
}

func (s *scene) Transform(e ecs.Entity) (Transform, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transforms[e]
	return t, ok
}

func (s *scene) SetTransform(e ecs.Entity, t Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transforms[e] = t
}

// modelMatrix computes an entity's current world matrix from its Transform.
func (s *scene) modelMatrix(e ecs.Entity) [16]float32 {
	var m [16]float32
	t, ok := s.transforms[e]
	if !ok {
		common.Identity(m[:])
		return m
	}
	common.BuildModelMatrix(m[:],
		t.Position[0], t.Position[1], t.Position[2],
		t.Rotation[0], t.Rotation[1], t.Rotation[2],
		t.Scale[0], t.Scale[1], t.Scale[2],
	)
	return m
}

// marshalTransforms packs every packed drawable's current world matrix into
// a flat buffer indexed by Drawable.TransformIndex.
func (s *scene) marshalTransforms() []byte {
	packed := s.drawables.Packed()
	mats := make([][16]float32, len(packed))
	for _, d := range packed {
		if int(d.TransformIndex) >= len(mats) {
			continue
		}
		mats[d.TransformIndex] = s.modelMatrix(d.Entity)
	}
	return common.SliceToBytes(mats)
}

func (s *scene) AddProbe(p *probe.EnvironmentProbe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes.Add(p)
}

func (s *scene) RemoveProbe(entity ecs.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes.Remove(entity)
}

func (s *scene) Probe(entity ecs.Entity) (*probe.EnvironmentProbe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.probes.Get(entity)
}

func (s *scene) Probes() []*probe.EnvironmentProbe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.probes.All()
}

// InitProbes assigns the BRDF LUT / lambertian / GGX compute shaders the
// scene's probes are prefiltered with and allocates the shared constants
// bind group those dispatches write to, mirroring InitLightCullResources'
// single-bind-group-per-compute-stage pattern.
func (s *scene) InitProbes(brdfLUTShader, lambertianShader, ggxShader shader.Shader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.probes.SetPrefilterShaders(brdfLUTShader, lambertianShader, ggxShader)

	probeBGP := bind_group_provider.NewBindGroupProvider(s.name + "_probe_prefilter")
	desc := brdfLUTShader.BindGroupLayoutDescriptor(0)
	sizeOverrides := map[int]uint64{0: 32}
	if err := s.r.InitBindGroup(probeBGP, desc, nil, sizeOverrides); err != nil {
		return fmt.Errorf("scene: failed to init probe prefilter bind group: %w", err)
	}
	s.probeBGP = probeBGP
	return nil
}

// UpdateProbes captures face targets and re-runs the prefilter chain for
// every registered probe that is Due, clearing its dirty flag on success.
// Called once per frame; idempotent for probes that aren't due.
func (s *scene) UpdateProbes() error {
	s.mu.Lock()
	probes := s.probes.All()
	probeBGP := s.probeBGP
	s.mu.Unlock()

	if probeBGP == nil {
		return nil
	}
	for _, p := range probes {
		if !p.Due() {
			continue
		}
		if err := p.EnsureFaceTargets(s.r); err != nil {
			return err
		}
		if err := s.probes.Prefilter(p, probeBGP); err != nil {
			return err
		}
	}
	return nil
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) AmbientColor() [3]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *scene) SetAmbientColor(color [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}

func (s *scene) LightBindGroupProvider() bind_group_provider.BindGroupProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lightsBGP
}

func (s *scene) InitLightBindGroup(fragmentShader shader.Shader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil || fragmentShader == nil {
		return
	}

	lightGroup := -1
	for groupIdx, bindings := range fragmentShader.BindGroupVarNames() {
		for _, name := range bindings {
			if strings.Contains(strings.ToLower(name), "light") {
				lightGroup = groupIdx
				break
			}
		}
		if lightGroup >= 0 {
			break
		}
	}
	if lightGroup < 0 {
		return
	}

	bgp := bind_group_provider.NewBindGroupProvider(s.name + "_lights")

	descriptor := fragmentShader.BindGroupLayoutDescriptor(lightGroup)
	sizeOverrides := make(map[int]uint64)
	for _, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		if entry.Buffer.Type == wgpu.BufferBindingTypeReadOnlyStorage || entry.Buffer.Type == wgpu.BufferBindingTypeStorage {
			sizeOverrides[binding] = uint64((&light.GPULightHeader{}).Size() + light.MaxGPULights*(&light.GPULight{}).Size())
		}
	}

	if err := s.r.InitBindGroup(bgp, descriptor, nil, sizeOverrides); err != nil {
		panic(fmt.Sprintf("scene: failed to init light bind group: %v", err))
	}
	s.lightsBGP = bgp
}

func (s *scene) InitShadowMap(shadowVertexShader, shadowSkinnedVertexShader shader.Shader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil || shadowVertexShader == nil {
		return
	}

	res := s.shadowMapResolution
	view, tex, err := s.r.CreateShadowDepthTexture(res, res)
	if err != nil {
		panic(fmt.Sprintf("scene: failed to create shadow depth texture: %v", err))
	}
	s.shadowDepthTexture = tex
	s.shadowDepthTextureView = view

	samp, err := s.r.CreateComparisonSampler()
	if err != nil {
		panic(fmt.Sprintf("scene: failed to create comparison sampler: %v", err))
	}
	s.shadowComparisonSamp = samp

	shadowGroup := 0
	for i, names := range shadowVertexShader.BindGroupVarNames() {
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), "shadow") {
				shadowGroup = i
				break
			}
		}
	}
	bgp := bind_group_provider.NewBindGroupProvider(s.name + "_shadow_data")
	desc := shadowVertexShader.BindGroupLayoutDescriptor(shadowGroup)
	sizeOverrides := make(map[int]uint64)
	for _, entry := range desc.Entries {
		if entry.Buffer.Type == wgpu.BufferBindingTypeUniform {
			sizeOverrides[int(entry.Binding)] = 80
		}
	}
	if err := s.r.InitBindGroup(bgp, desc, nil, sizeOverrides); err != nil {
		panic(fmt.Sprintf("scene: failed to init shadow data bind group: %v", err))
	}
	s.shadowDataBGP = bgp

	staticKey := "shadow_depth_static"
	sp := pipeline.NewPipeline(staticKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shadowVertexShader),
		pipeline.WithDepthBias(2, 1.5),
		pipeline.WithCullMode(wgpu.CullModeFront),
	)
	if err := s.r.RegisterShadowPipeline(sp); err != nil {
		panic(fmt.Sprintf("scene: failed to register static shadow pipeline: %v", err))
	}
	s.shadowPipelineKey = staticKey

	if shadowSkinnedVertexShader != nil {
		skinnedKey := "shadow_depth_skinned"
		ssp := pipeline.NewPipeline(skinnedKey, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shadowSkinnedVertexShader),
			pipeline.WithDepthBias(2, 1.5),
			pipeline.WithCullMode(wgpu.CullModeFront),
		)
		if err := s.r.RegisterShadowPipeline(ssp); err != nil {
			panic(fmt.Sprintf("scene: failed to register skinned shadow pipeline: %v", err))
		}
		s.shadowSkinnedPipeKey = skinnedKey
	}
}

func (s *scene) ShadowDepthTextureView() *wgpu.TextureView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadowDepthTextureView
}

func (s *scene) ShadowDataBindGroupProvider() bind_group_provider.BindGroupProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadowDataBGP
}

func (s *scene) ShadowLitBindGroupProvider() bind_group_provider.BindGroupProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadowLitBGP
}

func (s *scene) InitShadowLitBindGroup(litFragmentShader shader.Shader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil || litFragmentShader == nil {
		return
	}
	if s.shadowDepthTextureView == nil || s.shadowComparisonSamp == nil {
		return
	}

	shadowGroup := -1
	for groupIdx, bindings := range litFragmentShader.BindGroupVarNames() {
		for _, name := range bindings {
			if strings.Contains(strings.ToLower(name), "shadow") {
				shadowGroup = groupIdx
				break
			}
		}
		if shadowGroup >= 0 {
			break
		}
	}
	if shadowGroup < 0 {
		return
	}

	bgp := bind_group_provider.NewBindGroupProvider(s.name + "_shadow_lit")

	desc := litFragmentShader.BindGroupLayoutDescriptor(shadowGroup)
	for _, entry := range desc.Entries {
		binding := int(entry.Binding)
		if entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined {
			bgp.SetTextureView(binding, s.shadowDepthTextureView)
		}
		if entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined {
			bgp.SetSampler(binding, s.shadowComparisonSamp)
		}
	}

	sizeOverrides := make(map[int]uint64)
	for _, entry := range desc.Entries {
		if entry.Buffer.Type == wgpu.BufferBindingTypeUniform {
			sizeOverrides[int(entry.Binding)] = 80
		}
	}

	if err := s.r.InitBindGroup(bgp, desc, nil, sizeOverrides); err != nil {
		panic(fmt.Sprintf("scene: failed to init shadow lit bind group: %v", err))
	}
	s.shadowLitBGP = bgp
}

// shadowBindGroupsFor returns the shadow-pass bind groups for drawable d,
// appending its skin animator's output BGP when skinned.
func (s *scene) shadowBindGroupsFor(d drawable.Drawable) []bind_group_provider.BindGroupProvider {
	groups := []bind_group_provider.BindGroupProvider{s.shadowDataBGP, s.drawDataBGP}
	if d.SkinIndex >= 0 {
		if anim, ok := s.skins.Get(d.SkinIndex); ok && anim != nil {
			groups = append(groups, anim.OutputBindGroupProvider())
		}
	}
	return groups
}

func (s *scene) PrepareShadows() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shadowDepthTextureView == nil || s.shadowDataBGP == nil || s.r == nil {
		return
	}

	var shadowLight light.Light
	for _, l := range s.lights {
		if l.Enabled() && l.CastsShadows() && l.Type() == light.LightTypeDirectional {
			shadowLight = l
			break
		}
	}
	if shadowLight == nil {
		return
	}

	// Pack the directional light's cascade into the shadow atlas, reusing
	// shadowatlas's cascade-split / frustum-fit math against the camera's
	// current inverse view-projection matrix. CascadeCount is pinned at 1 to
	// preserve the single-shadow-map wire format the shadow shaders expect.
	var view, proj, vp, invVP [16]float32
	if s.cam != nil {
		view = s.cam.ViewMatrix()
		proj = s.cam.ProjectionMatrix()
	} else {
		common.Identity(view[:])
		common.Identity(proj[:])
	}
	common.Mul4(vp[:], proj[:], view[:])
	common.Invert4(invVP[:], vp[:])

	s.shadowAtlasPacker.Reset()
	near, far := s.shadowNear, s.shadowFar
	if s.cam != nil {
		near, far = s.cam.Near(), s.cam.Far()
	}
	packed, err := shadowatlas.PackDirectionalLight(
		s.shadowAtlasPacker, invVP[:], near, far,
		shadowLight.Direction(), 1, uint32(s.shadowMapResolution), s.shadowNormalBiasScale,
	)
	if err != nil {
		return
	}

	shadowData := light.GPUShadowData{
		LightVP:    packed.LightVP[0],
		TexelSize:  [2]float32{1.0 / float32(s.shadowMapResolution), 1.0 / float32(s.shadowMapResolution)},
		Bias:       s.shadowBias,
		NormalBias: packed.NormalBias,
	}
	shadowBytes := shadowData.Marshal()
	writes := []bind_group_provider.BufferWrite{
		{Provider: s.shadowDataBGP, Binding: 0, Offset: 0, Data: shadowBytes},
	}
	if s.shadowLitBGP != nil {
		for binding, buf := range s.shadowLitBGP.Buffers() {
			if buf != nil {
				writes = append(writes, bind_group_provider.BufferWrite{
					Provider: s.shadowLitBGP,
					Binding:  binding,
					Offset:   0,
					Data:     shadowBytes,
				})
				break
			}
		}
	}
	s.r.WriteBuffers(writes)

	if err := s.r.BeginShadowFrame(); err != nil {
		return
	}
	s.r.BeginShadowPass(s.shadowDepthTextureView)

	for _, d := range s.drawingSet() {
		if d.Flags&(drawable.FlagShadowDeferred|drawable.FlagShadowForward) == 0 {
			continue
		}
		pipeKey := s.shadowPipelineKey
		if d.SkinIndex >= 0 && s.shadowSkinnedPipeKey != "" {
			pipeKey = s.shadowSkinnedPipeKey
		}
		if pipeKey == "" {
			continue
		}
		_ = s.r.ShadowDrawCall(pipeKey, s.meshProvider, d.IndexCount, d.IndexOffset, d.VertexOffset, 1, s.shadowBindGroupsFor(d))
	}

	s.r.EndShadowPass()
	s.r.EndShadowFrame()
}

func (s *scene) InitLightCullResources(cullComputeShader, litFragmentShader shader.Shader, screenWidth, screenHeight int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil || cullComputeShader == nil || litFragmentShader == nil {
		return
	}
	if s.lightsBGP == nil {
		return
	}

	s.screenWidth = screenWidth
	s.screenHeight = screenHeight
	tileCountX, tileCountY := light.TileCounts(screenWidth, screenHeight)
	s.tileCountX = tileCountX
	s.tileCountY = tileCountY

	numTiles := uint64(tileCountX) * uint64(tileCountY)

	cullBGP := bind_group_provider.NewBindGroupProvider(s.name + "_light_cull")
	if lightsBuffer := s.lightsBGP.Buffer(1); lightsBuffer != nil {
		cullBGP.SetBuffer(1, lightsBuffer)
	}

	cullDesc := cullComputeShader.BindGroupLayoutDescriptor(0)
	sizeOverrides := map[int]uint64{
		0: 160,
		2: numTiles * 4,
		3: numTiles * uint64(light.MaxLightsPerTile) * 4,
	}

	if err := s.r.InitBindGroup(cullBGP, cullDesc, nil, sizeOverrides); err != nil {
		panic(fmt.Sprintf("scene: failed to init light cull bind group: %v", err))
	}
	s.lightCullBGP = cullBGP

	pipeKey := "light_cull_compute"
	cp := pipeline.NewPipeline(pipeKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cullComputeShader),
	)
	if err := s.r.RegisterPipelines(cp); err != nil {
		panic(fmt.Sprintf("scene: failed to register light cull compute pipeline: %v", err))
	}
	s.lightCullPipelineKey = pipeKey

	tileBGP := bind_group_provider.NewBindGroupProvider(s.name + "_tile_lit")
	if countsBuf := cullBGP.Buffer(2); countsBuf != nil {
		tileBGP.SetBuffer(1, countsBuf)
	}
	if indicesBuf := cullBGP.Buffer(3); indicesBuf != nil {
		tileBGP.SetBuffer(2, indicesBuf)
	}

	tileGroup := -1
	for groupIdx, bindings := range litFragmentShader.BindGroupVarNames() {
		for _, name := range bindings {
			if strings.Contains(strings.ToLower(name), "tile") {
				tileGroup = groupIdx
				break
			}
		}
		if tileGroup >= 0 {
			break
		}
	}
	if tileGroup < 0 {
		panic("scene: lit fragment shader has no tile bind group")
	}

	tileDesc := litFragmentShader.BindGroupLayoutDescriptor(tileGroup)
	tileSizeOverrides := map[int]uint64{0: 8}
	if err := s.r.InitBindGroup(tileBGP, tileDesc, nil, tileSizeOverrides); err != nil {
		panic(fmt.Sprintf("scene: failed to init tile lit bind group: %v", err))
	}
	s.tileLitBGP = tileBGP

	tileUniforms := light.GPUTileUniforms{
		TileCountX:       tileCountX,
		MaxLightsPerTile: light.MaxLightsPerTile,
	}
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: tileBGP, Binding: 0, Offset: 0, Data: tileUniforms.Marshal()},
	})
}

// reinitCameraBGPForLitPipeline recreates the camera's bind group with merged
// VERTEX|FRAGMENT visibility so it matches the lit render pipeline's layout.
func (s *scene) reinitCameraBGPForLitPipeline(litFragShader shader.Shader) {
	if s.cam == nil || litFragShader == nil {
		return
	}

	cameraGroup := -1
	for groupIdx, bindings := range litFragShader.BindGroupVarNames() {
		for _, name := range bindings {
			if strings.Contains(strings.ToLower(name), "camera") {
				cameraGroup = groupIdx
				break
			}
		}
		if cameraGroup >= 0 {
			break
		}
	}
	if cameraGroup < 0 {
		return
	}

	bgp := s.cam.BindGroupProvider()
	if bgp == nil {
		return
	}

	fragDesc := litFragShader.BindGroupLayoutDescriptor(cameraGroup)
	entries := make([]wgpu.BindGroupLayoutEntry, len(fragDesc.Entries))
	copy(entries, fragDesc.Entries)
	for i := range entries {
		entries[i].Visibility |= wgpu.ShaderStageVertex
	}
	mergedDesc := wgpu.BindGroupLayoutDescriptor{
		Label:   fragDesc.Label,
		Entries: entries,
	}

	bgp.SetBindGroupLayout(nil)
	if err := s.r.InitBindGroup(bgp, mergedDesc, nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to reinit camera bind group for lit pipeline: %v", err))
	}
}

func (s *scene) PrepareLightCulling() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lightCullBGP == nil || s.r == nil || s.cam == nil {
		return
	}

	var lightCount uint32
	for _, l := range s.lights {
		if l.Enabled() {
			lightCount++
		}
	}

	uniforms := light.GPULightCullUniforms{
		InvProj:      s.cam.InverseProjectionMatrix(),
		ViewMatrix:   s.cam.ViewMatrix(),
		TileCountX:   s.tileCountX,
		TileCountY:   s.tileCountY,
		ScreenWidth:  uint32(s.screenWidth),
		ScreenHeight: uint32(s.screenHeight),
		LightCount:   lightCount,
		Near:         s.cam.Near(),
		Far:          s.cam.Far(),
	}
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: s.lightCullBGP, Binding: 0, Offset: 0, Data: uniforms.Marshal()},
	})

	if err := s.r.BeginComputeFrame(); err != nil {
		return
	}
	s.r.DispatchCompute(s.lightCullPipelineKey, s.lightCullBGP, [3]uint32{s.tileCountX, s.tileCountY, 1})
	s.r.EndComputeFrame()
}

func (s *scene) InitLighting(litFragShader, shadowVertShader, shadowSkinnedVertShader, cullComputeShader shader.Shader, screenWidth, screenHeight int) {
	s.InitLightBindGroup(litFragShader)
	s.InitShadowMap(shadowVertShader, shadowSkinnedVertShader)
	s.InitShadowLitBindGroup(litFragShader)
	s.InitLightCullResources(cullComputeShader, litFragShader, screenWidth, screenHeight)
	s.reinitCameraBGPForLitPipeline(litFragShader)
}

func (s *scene) InitSkinning(computeShader shader.Shader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if computeShader == nil {
		return
	}
	s.skinComputeShader = computeShader

	for _, decl := range computeShader.Declarations() {
		if decl.Type != shader.AnnotationTypeBindingGroup || decl.Binding == nil {
			continue
		}
		typeArg := string(decl.Args[2])
		if stripped, ok := strings.CutPrefix(typeArg, "array<"); ok {
			typeArg = strings.TrimSuffix(stripped, ">")
		}
		switch shader.AnnotationArg(typeArg) {
		case shader.AnnotationArgGlobalData, shader.AnnotationArgAnimationGlobals:
			s.skinUniformBinding = *decl.Binding
		case shader.AnnotationArgAnimationData, shader.AnnotationArgSkeletalAnimationData:
			s.skinInstanceBinding = *decl.Binding
		case shader.AnnotationArgBoneInfo:
			s.skinBoneBinding = *decl.Binding
		case shader.AnnotationArgModelData:
			s.skinModelBinding = *decl.Binding
		}
	}
}

// drawingSet returns the drawables to iterate for this frame's passes: the
// culled visible set when frustum culling is enabled, or every packed
// drawable whose entity is still alive when SetCullingDisabled(true)
// bypasses it.
func (s *scene) drawingSet() []drawable.Drawable {
	if s.cullingDisabled || s.cam == nil {
		packed := s.drawables.Packed()
		alive := make([]drawable.Drawable, 0, len(packed))
		for _, d := range packed {
			if s.entities.Alive(d.Entity) {
				alive = append(alive, d)
			}
		}
		return alive
	}
	return s.visible
}

func (s *scene) PrepareCompute(deltaTime float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return
	}

	var frustum common.Frustum
	if s.cam != nil {
		s.cam.Update()
		vpMat := s.cam.ViewProjectionMatrix()
		if camBGP := s.cam.BindGroupProvider(); camBGP != nil {
			camUniform := camera.GPUCameraUniform{ViewProj: vpMat}
			if ctrl := s.cam.Controller(); ctrl != nil {
				camUniform.CameraPosition[0], camUniform.CameraPosition[1], camUniform.CameraPosition[2] = ctrl.Position()
			}
			s.r.WriteBuffers([]bind_group_provider.BufferWrite{
				{Provider: camBGP, Binding: 0, Offset: 0, Data: camUniform.Marshal()},
			})
		}
		frustum = common.ExtractFrustumFromMatrix(vpMat[:])
	}

	if s.lightsBGP != nil {
		lightData := light.MarshalLightBuffer(s.lights, s.ambientColor)
		writes := []bind_group_provider.BufferWrite{
			{Provider: s.lightsBGP, Binding: 0, Offset: 0, Data: lightData[:16]},
		}
		if len(lightData) > 16 {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: s.lightsBGP, Binding: 1, Offset: 0, Data: lightData[16:],
			})
		}
		s.r.WriteBuffers(writes)
	}

	if s.skins != nil && s.skinComputeShader != nil {
		s.skins.PrepareAll(deltaTime, s.skinUniformBinding, s.skinInstanceBinding, s.skinBoneBinding, s.skinModelBinding)
	}

	s.recomputeVisibility(frustum)

	if len(s.buffers.Positions) > 0 && s.drawDataBGP != nil {
		transformBytes := s.marshalTransforms()
		s.r.WriteBuffers([]bind_group_provider.BufferWrite{
			{Provider: s.drawDataBGP, Binding: 2, Offset: 0, Data: transformBytes},
		})
	}
}

// recomputeVisibility runs SAT frustum culling for every packed drawable in
// parallel via the scene's compute pool, populating s.visible. A no-op when
// culling is disabled (drawingSet falls back to the full packed list).
func (s *scene) recomputeVisibility(frustum common.Frustum) {
	if s.cullingDisabled || s.cam == nil {
		return
	}
	packed := s.drawables.Packed()
	results := make([]bool, len(packed))

	var wg sync.WaitGroup
	for i, d := range packed {
		if !s.entities.Alive(d.Entity) {
			continue
		}
		wg.Add(1)
		idx, dd := i, d
		s.computePool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				model := s.modelMatrix(dd.Entity)
				bounds := s.localBounds[dd.Entity]
				obb := common.OBBFromAABB(bounds, model[:])
				results[idx] = common.SATVisible(frustum, obb)
				return nil, nil
			},
		})
	}
	wg.Wait()

	visible := s.visible[:0]
	for i, d := range packed {
		if results[i] && s.entities.Alive(d.Entity) {
			visible = append(visible, d)
		}
	}
	s.visible = visible
}

func (s *scene) InitGBuffer(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return fmt.Errorf("scene: InitGBuffer requires a renderer")
	}
	targets, err := s.r.CreateGBufferTargets(width, height)
	if err != nil {
		return fmt.Errorf("scene: failed to create g-buffer targets: %w", err)
	}
	s.gbufferTargets = targets
	s.gbufferWidth = width
	s.gbufferHeight = height
	return nil
}

// drawGroupBindGroups returns the per-drawable bind group list for the
// G-buffer/forward pass: camera, shared draw data, and (when skinned) the
// skin animator's joint-matrix output.
func (s *scene) drawGroupBindGroups(d drawable.Drawable) []bind_group_provider.BindGroupProvider {
	groups := s.drawBindGroupsPool[:0]
	if s.cam != nil {
		if camBGP := s.cam.BindGroupProvider(); camBGP != nil {
			groups = append(groups, camBGP)
		}
	}
	groups = append(groups, s.drawDataBGP)
	if d.SkinIndex >= 0 {
		if anim, ok := s.skins.Get(d.SkinIndex); ok && anim != nil {
			groups = append(groups, anim.OutputBindGroupProvider())
		}
	}
	s.drawBindGroupsPool = groups
	return groups
}

// variantPipelineKey resolves (and lazily builds, via the scene's variant
// cache) the concrete pipeline for a drawable's material-derived graphics
// state, layered on top of its already-registered base pipeline.
func (s *scene) variantPipelineKey(d drawable.Drawable) string {
	mat := s.entityMaterial[d.Entity]
	if mat == nil || s.variants == nil {
		return d.MainShader
	}

	state := variantcache.GraphicsState{
		DepthTestEnabled:  true,
		DepthWriteEnabled: !mat.AlphaBlend(),
		BlendEnabled:      mat.AlphaBlend(),
		CullMode:          wgpu.CullModeBack,
		Topology:          wgpu.PrimitiveTopologyTriangleList,
		FrontFace:         wgpu.FrontFaceCCW,
		WriteMask:         wgpu.ColorWriteMaskAll,
	}
	if mat.DoubleSided() {
		state.CullMode = wgpu.CullModeNone
	}
	skinned := uint32(0)
	if d.SkinIndex >= 0 {
		skinned = 1
	}
	key := variantcache.NewKey(d.MainShader, state, variantcache.ConstantBytes(skinned))

	p, err := s.variants.GetOrBuild(key, func() (pipeline.Pipeline, error) {
		base := s.r.Pipeline(d.MainShader)
		if base == nil {
			return nil, fmt.Errorf("scene: unknown base pipeline %q", d.MainShader)
		}
		opts := []pipeline.PipelineBuilderOption{
			pipeline.WithVertexShader(base.Shader(shader.ShaderTypeVertex)),
			pipeline.WithFragmentShader(base.Shader(shader.ShaderTypeFragment)),
			pipeline.WithDepthTestEnabled(state.DepthTestEnabled),
			pipeline.WithDepthWriteEnabled(state.DepthWriteEnabled),
			pipeline.WithBlendEnabled(state.BlendEnabled),
			pipeline.WithCullMode(state.CullMode),
			pipeline.WithTopology(state.Topology),
			pipeline.WithFrontFace(state.FrontFace),
			pipeline.WithWriteMask(state.WriteMask),
		}
		variantKey := fmt.Sprintf("%s/variant/%x", d.MainShader, key)
		vp := pipeline.NewPipeline(variantKey, pipeline.PipelineTypeRender, opts...)
		if err := s.r.RegisterPipelines(vp); err != nil {
			return nil, err
		}
		return vp, nil
	})
	if err != nil || p == nil {
		return d.MainShader
	}
	return p.PipelineKey()
}

func (s *scene) DrawGBuffer() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gbufferTargets == nil || s.r == nil || s.meshProvider == nil {
		return nil
	}
	if err := s.r.BeginGBufferPass(s.gbufferTargets); err != nil {
		return err
	}
	for _, d := range s.drawingSet() {
		if d.Flags&drawable.FlagDeferred == 0 {
			continue
		}
		pipeKey := s.variantPipelineKey(d)
		if err := s.r.GBufferDrawCall(pipeKey, s.meshProvider, d.IndexCount, d.IndexOffset, d.VertexOffset, 1, s.drawGroupBindGroups(d)); err != nil {
			continue
		}
	}
	s.r.EndGBufferPass()
	return nil
}

func (s *scene) InitDeferredLighting(vertexShader, fragmentShader shader.Shader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil || fragmentShader == nil {
		return fmt.Errorf("scene: InitDeferredLighting requires a renderer and fragment shader")
	}
	key := s.name + "_deferred_lighting"
	p := pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vertexShader),
		pipeline.WithFragmentShader(fragmentShader),
	)
	if err := s.r.RegisterPipelines(p); err != nil {
		return fmt.Errorf("scene: failed to register deferred lighting pipeline: %w", err)
	}
	s.lightingPipeKey = key
	return nil
}

func (s *scene) DrawLightingPass() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lightingPipeKey == "" || s.r == nil || s.gbufferTargets == nil {
		return nil
	}
	if err := s.r.BeginLightingPass(s.gbufferTargets); err != nil {
		return err
	}
	groups := make([]bind_group_provider.BindGroupProvider, 0, 4)
	if s.cam != nil {
		if camBGP := s.cam.BindGroupProvider(); camBGP != nil {
			groups = append(groups, camBGP)
		}
	}
	if s.lightsBGP != nil {
		groups = append(groups, s.lightsBGP)
	}
	if s.shadowLitBGP != nil {
		groups = append(groups, s.shadowLitBGP)
	}
	if s.tileLitBGP != nil {
		groups = append(groups, s.tileLitBGP)
	}
	if err := s.r.LightingDrawCall(s.lightingPipeKey, s.meshProvider, groups); err != nil {
		s.r.EndLightingPass()
		return err
	}
	s.r.EndLightingPass()
	return nil
}

func (s *scene) DrawForward() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.r == nil || s.meshProvider == nil {
		return nil
	}
	for _, d := range s.drawingSet() {
		if d.Flags&drawable.FlagForward == 0 {
			continue
		}
		pipeKey := s.variantPipelineKey(d)
		if err := s.r.DrawCall(pipeKey, s.meshProvider, d.IndexCount, d.IndexOffset, d.VertexOffset, 1, s.drawGroupBindGroups(d)); err != nil {
			continue
		}
	}
	return nil
}

func (s *scene) InitPicking(framesInFlight, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return fmt.Errorf("scene: InitPicking requires a renderer")
	}
	target, err := s.r.CreatePickTarget(width, height)
	if err != nil {
		return fmt.Errorf("scene: failed to create pick target: %w", err)
	}
	s.pickTarget = target
	s.pickRing = pick.NewRing(framesInFlight)
	return nil
}

func (s *scene) RequestPick(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pickRing != nil {
		s.pickRing.Request(x, y)
	}
}

func (s *scene) SelectEntities(entities []ecs.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[ecs.Entity]struct{}, len(entities))
	for _, e := range entities {
		s.selected[e] = struct{}{}
	}
}

func (s *scene) DrawPick() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pickTarget == nil || s.pickRing == nil || s.r == nil || s.meshProvider == nil {
		return nil
	}

	if err := s.r.BeginPickPass(s.pickTarget); err != nil {
		return err
	}
	for _, d := range s.drawingSet() {
		groups := append([]bind_group_provider.BindGroupProvider{}, s.drawGroupBindGroups(d)...)
		if err := s.r.PickDrawCall(d.MainShader, s.meshProvider, d.IndexCount, d.IndexOffset, d.VertexOffset, 1, groups); err != nil {
			continue
		}
	}
	s.r.EndPickPass(s.pickTarget)

	if x, y, ready := s.pickRing.Advance(); ready {
		if rgba, err := s.r.ReadPickPixel(s.pickTarget, x, y); err == nil {
			s.pickedEntity = pick.Decode(rgba)
			s.pickReady = true
		}
	}
	return nil
}

func (s *scene) GetPickedEntity() (ecs.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pickedEntity, s.pickReady
}

func (s *scene) LoadSkyboxFromPanorama(path string, faceResolution int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return fmt.Errorf("scene: LoadSkyboxFromPanorama requires a renderer")
	}

	faces, err := common.DecodePanoramaToCubeFaces(path, faceResolution)
	if err != nil {
		return fmt.Errorf("scene: failed to decode panorama %q: %w", path, err)
	}

	handle := bindless.NewHandle(s.nextTextureHandleIndex, 1)
	s.nextTextureHandleIndex++
	if s.bindlessTables != nil && s.bindlessTables.Cubemaps != nil {
		s.bindlessTables.Cubemaps.Query(handle)
	}

	for i, face := range faces {
		view := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s_skybox_face_%d", s.name, i))
		staging := common.TextureStagingData{
			Width:  uint32(faceResolution),
			Height: uint32(faceResolution),
			Pixels: face,
		}
		if err := s.r.InitTextureView(view, 0, staging); err != nil {
			return fmt.Errorf("scene: failed to upload skybox face %d: %w", i, err)
		}
	}

	s.skyboxHandle = handle
	return nil
}

// Render composes PrepareShadows, DrawGBuffer, DrawLightingPass, DrawForward,
// and DrawPick into a single ordered rendergraph.Graph and executes it. The
// caller must have already called PrepareCompute this frame.
func (s *scene) Render() error {
	graph := rendergraph.New(
		rendergraph.Stage{Name: "shadow", Run: func() error { s.PrepareShadows(); return nil }},
		rendergraph.Stage{Name: "gbuffer", Run: s.DrawGBuffer},
		rendergraph.Stage{Name: "lighting", Run: s.DrawLightingPass},
		rendergraph.Stage{Name: "forward", Run: s.DrawForward},
		rendergraph.Stage{Name: "pick", Run: s.DrawPick},
	)
	return graph.Run()
}
