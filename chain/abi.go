// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chain

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/ProductSeriesNFT.json
var productSeriesNFTABIJSON string

//go:embed abi/BrandRegistry.json
var brandRegistryABIJSON string

var (
	ProductSeriesNFTABI = mustParseABI("ProductSeriesNFT", productSeriesNFTABIJSON)
	BrandRegistryABI    = mustParseABI("BrandRegistry", brandRegistryABIJSON)
)

func mustParseABI(name string, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded %s ABI: %s", name, err))
	}
	return parsed
}
