// Copyright 2023 The Cuber Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLocalIp(t *testing.T) {
	ip, err := GetLocalIp()
	if err != nil {
		t.Skip("no non-loopback address:", err)
	}
	require.NotNil(t, net.ParseIP(ip))
	t.Log(ip)
}
