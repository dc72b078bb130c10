// Package vulkan implements the graphics backend on Vulkan 1.0 through
// vulkan-go. Buffers live in host-visible memory; draws are recorded into a
// command buffer the caller supplies with Record. Presentation is not part
// of this backend.
package vulkan

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// ErrNoDevice is returned when no physical device offers a graphics queue
var ErrNoDevice = errors.New("vulkan: no device with a graphics queue")

// Context is the instance, logical device and graphics queue every other
// part of the backend works through
type Context struct {
	Instance vk.Instance
	GPU      vk.PhysicalDevice
	Device   vk.Device
	Queue    vk.Queue
	Family   uint32
	Pool     vk.CommandPool

	memoryTypes []vk.MemoryPropertyFlags
}

func cstr(s string) string { return s + "\x00" }

// NewContext loads the Vulkan loader, creates an instance and opens the
// first physical device with a graphics queue
func NewContext(appName string, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("vulkan: load loader: %w", err)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan: init: %w", err)
	}

	c := &Context{}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   cstr(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        cstr("RenderStar"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 0, 0),
	}
	res := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}, nil, &c.Instance)
	if err := check(res, "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(c.Instance); err != nil {
		vk.DestroyInstance(c.Instance, nil)
		return nil, fmt.Errorf("vulkan: init instance: %w", err)
	}

	if err := c.openDevice(logger); err != nil {
		vk.DestroyInstance(c.Instance, nil)
		return nil, err
	}
	return c, nil
}

func (c *Context) openDevice(logger *slog.Logger) error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(c.Instance, &count, nil), "enumerate devices"); err != nil {
		return err
	}
	if count == 0 {
		return ErrNoDevice
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(c.Instance, &count, gpus), "enumerate devices"); err != nil {
		return err
	}

	found := false
	for _, gpu := range gpus {
		if family, ok := graphicsFamily(gpu); ok {
			c.GPU, c.Family, found = gpu, family, true
			break
		}
	}
	if !found {
		return ErrNoDevice
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(c.GPU, &props)
	props.Deref()
	logger.Info("vulkan device selected", "device", vk.ToString(props.DeviceName[:]), "queue_family", c.Family)

	res := vk.CreateDevice(c.GPU, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: c.Family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
	}, nil, &c.Device)
	if err := check(res, "create device"); err != nil {
		return err
	}
	vk.GetDeviceQueue(c.Device, c.Family, 0, &c.Queue)

	res = vk.CreateCommandPool(c.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: c.Family,
	}, nil, &c.Pool)
	if err := check(res, "create command pool"); err != nil {
		vk.DestroyDevice(c.Device, nil)
		return err
	}

	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.GPU, &mem)
	mem.Deref()
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		mem.MemoryTypes[i].Deref()
		c.memoryTypes = append(c.memoryTypes, mem.MemoryTypes[i].PropertyFlags)
	}
	return nil
}

func graphicsFamily(gpu vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// allocate finds a memory type for reqs with the wanted properties and
// allocates it
func (c *Context) allocate(reqs vk.MemoryRequirements, want vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	var mem vk.DeviceMemory
	reqs.Deref()
	index, ok := findMemoryType(c.memoryTypes, reqs.MemoryTypeBits, vk.MemoryPropertyFlags(want))
	if !ok {
		return mem, fmt.Errorf("vulkan: no memory type with properties 0x%x", want)
	}
	res := vk.AllocateMemory(c.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, nil, &mem)
	return mem, check(res, "allocate memory")
}

// write copies data into host-visible memory at offset
func (c *Context) write(mem vk.DeviceMemory, offset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var p unsafe.Pointer
	res := vk.MapMemory(c.Device, mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &p)
	if err := check(res, "map memory"); err != nil {
		return err
	}
	vk.Memcopy(p, data)
	vk.UnmapMemory(c.Device, mem)
	return nil
}

// submitOnce records a one-shot command buffer with fn, submits it and
// waits for the queue to drain
func (c *Context) submitOnce(fn func(cmd vk.CommandBuffer)) error {
	cmds := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(c.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.Pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if err := check(res, "allocate command buffer"); err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(c.Device, c.Pool, 1, cmds)

	res = vk.BeginCommandBuffer(cmds[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := check(res, "begin command buffer"); err != nil {
		return err
	}
	fn(cmds[0])
	if err := check(vk.EndCommandBuffer(cmds[0]), "end command buffer"); err != nil {
		return err
	}
	var noFence vk.Fence
	res = vk.QueueSubmit(c.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}}, noFence)
	if err := check(res, "queue submit"); err != nil {
		return err
	}
	return check(vk.QueueWaitIdle(c.Queue), "queue wait idle")
}

// Destroy waits for the device to go idle and tears everything down
func (c *Context) Destroy() {
	if c.Device != nil {
		vk.DeviceWaitIdle(c.Device)
		vk.DestroyCommandPool(c.Device, c.Pool, nil)
		vk.DestroyDevice(c.Device, nil)
		c.Device = nil
	}
	if c.Instance != nil {
		vk.DestroyInstance(c.Instance, nil)
		c.Instance = nil
	}
}
