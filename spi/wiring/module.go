/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wiring

import (
	"reflect"

	"github.com/go-errors/errors"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var errorReflectiveType = reflect.TypeOf((*error)(nil)).Elem()

type Module interface {
	Provide(constructor any)
	Invoke(call any)
	register(injector *do.Injector) error
	initialize(injector *do.Injector) error
}

func DefineModule(name string, definer func(module Module)) Module {
	module := &module{
		name: name,
	}
	definer(module)
	return module
}

type module struct {
	name     string
	bindings []*bindingInfo
}

func (m *module) register(injector *do.Injector) error {
	for _, binding := range m.bindings {
		if binding.invoker == nil {
			if lo.Contains(injector.ListProvidedServices(), binding.output) {
				do.OverrideNamed(injector, binding.output, binding.provider)
			} else {
				do.ProvideNamed(injector, binding.output, binding.provider)
			}
		}
	}
	return nil
}

func (m *module) initialize(injector *do.Injector) error {
	for _, binding := range m.bindings {
		if binding.invoker != nil {
			if err := binding.invoker(injector); err != nil {
				return err
			}
		}
	}
	return nil
}

// Provide registers a constructor function. Its parameters
// are resolved from previously provided services by type,
// the first return value becomes the provided service, an
// optional second return value must be an error.
func (m *module) Provide(constructor any) {
	t := reflect.TypeOf(constructor)
	if t.Kind() != reflect.Func {
		panic(errors.Errorf("Type %s is not a function", t.String()))
	}
	v := reflect.ValueOf(constructor)

	binding := &bindingInfo{
		name: t.String(),
	}

	for i := 0; i < t.NumIn(); i++ {
		binding.inputs = append(binding.inputs, t.In(i))
	}

	mayReturnError := false
	if 2 == t.NumOut() {
		if !t.Out(1).ConvertibleTo(errorReflectiveType) {
			panic(errors.Errorf("Type %s has two return values, but the second one isn't an error", t.String()))
		}
		mayReturnError = true
	} else if t.NumOut() > 2 {
		panic(errors.Errorf("Type %s can only have 1 or 2 return values, but has %d", t.String(), t.NumOut()))
	}

	binding.output = t.Out(0).String()

	binding.provider = func(injector *do.Injector) (any, error) {
		params := make([]reflect.Value, 0, len(binding.inputs))
		for _, input := range binding.inputs {
			param, err := do.InvokeNamed[any](injector, input.String())
			if err != nil {
				return nil, err
			}
			params = append(params, reflect.ValueOf(param))
		}

		results := v.Call(params)
		if mayReturnError {
			errorValue := results[1]
			if !errorValue.IsNil() {
				return nil, errorValue.Convert(errorReflectiveType).Interface().(error)
			}
		}
		return results[0].Interface(), nil
	}

	m.bindings = append(m.bindings, binding)
}

// Invoke registers a function to be called after all
// providers are registered, with its parameters resolved
// the same way as constructors
func (m *module) Invoke(call any) {
	t := reflect.TypeOf(call)
	if t.Kind() != reflect.Func {
		panic(errors.Errorf("Type %s is not a function", t.String()))
	}
	v := reflect.ValueOf(call)

	binding := &bindingInfo{
		name: t.String(),
	}

	for i := 0; i < t.NumIn(); i++ {
		binding.inputs = append(binding.inputs, t.In(i))
	}

	mayReturnError := false
	if 1 == t.NumOut() {
		if !t.Out(0).ConvertibleTo(errorReflectiveType) {
			panic(errors.Errorf("Type %s has one return value, but it isn't an error", t.String()))
		}
		mayReturnError = true
	} else if t.NumOut() > 1 {
		panic(errors.Errorf("Type %s can only have 1 return value, but has %d", t.String(), t.NumOut()))
	}

	binding.invoker = func(injector *do.Injector) error {
		params := make([]reflect.Value, 0, len(binding.inputs))
		for _, input := range binding.inputs {
			param, err := do.InvokeNamed[any](injector, input.String())
			if err != nil {
				return err
			}
			params = append(params, reflect.ValueOf(param))
		}

		results := v.Call(params)
		if mayReturnError {
			errorValue := results[0]
			if !errorValue.IsNil() {
				return errorValue.Convert(errorReflectiveType).Interface().(error)
			}
		}
		return nil
	}

	m.bindings = append(m.bindings, binding)
}

type bindingInfo struct {
	name     string
	inputs   []reflect.Type
	output   string
	provider func(injector *do.Injector) (any, error)
	invoker  func(injector *do.Injector) error
}
