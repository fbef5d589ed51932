package vkdriver

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a failing result into an error carrying the result name
// and code. Success maps to nil.
func NewError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	return errors.Errorf("vulkan error: %s (%d)", vk.Error(ret).Error(), ret)
}

func resultError(ret vk.Result, op string) error {
	if err := NewError(ret); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}
