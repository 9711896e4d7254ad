//go:build !nogpu

package main

// Import the Vulkan backend so it registers via init().
import _ "github.com/gogpu/wgpu/hal/vulkan"
