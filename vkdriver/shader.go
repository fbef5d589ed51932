package vkdriver

import (
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// LoadShaderModule creates a shader module from SPIR-V bytes. The platform
// destroys its modules on Destroy; DestroyShaderModule releases one early.
func (p *Platform) LoadShaderModule(data []byte) (vk.ShaderModule, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return vk.NullShaderModule, errors.Errorf("shader code of %d bytes is not SPIR-V", len(data))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(p.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, errors.Wrap(NewError(ret), "create shader module")
	}
	p.shaderModules = append(p.shaderModules, module)
	return module, nil
}

// LoadShaderFile reads a compiled shader from path.
func (p *Platform) LoadShaderFile(path string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, errors.Wrap(err, "read shader")
	}
	module, err := p.LoadShaderModule(data)
	return module, errors.Wrap(err, path)
}

func (p *Platform) DestroyShaderModule(module vk.ShaderModule) {
	for i, m := range p.shaderModules {
		if m == module {
			p.shaderModules = append(p.shaderModules[:i], p.shaderModules[i+1:]...)
			vk.DestroyShaderModule(p.device, module, nil)
			return
		}
	}
}
