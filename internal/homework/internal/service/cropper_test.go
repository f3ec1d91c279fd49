// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeCrop(t *testing.T, b64 string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestGridCropper_Geometry(t *testing.T) {
	// 1000x800，4 行 5 列，页眉 5%：
	// headerPixels=40, cellW=200, cellH=190, inset=9
	// (第2行第3列) → x=409, y=239, w=182, h=172
	imageBytes := makePNG(t, 1000, 800)
	tpl := domain.CopybookTemplate{GridRows: 4, GridCols: 5, HeaderRatio: 0.05}
	result := &domain.BatchResult{
		Analyses: []domain.CharAnalysis{
			{RecognizedChar: "疑", Row: 2, Column: 3},
		},
	}

	NewGridCropper().Attach(result, imageBytes, tpl)

	require.NotEmpty(t, result.Analyses[0].CharImageBase64)
	crop := decodeCrop(t, result.Analyses[0].CharImageBase64)
	assert.Equal(t, 182, crop.Bounds().Dx())
	assert.Equal(t, 172, crop.Bounds().Dy())

	// 裁出来的左上角像素应来自原图 (409, 239)
	r, g, _, _ := crop.At(0, 0).RGBA()
	assert.Equal(t, uint32(409%256), r>>8)
	assert.Equal(t, uint32(239%256), g>>8)
}

func TestGridCropper_SingleCellNoHeader(t *testing.T) {
	// 1x1 网格无页眉：裁掉四周各 5% 后覆盖几乎整张图
	imageBytes := makePNG(t, 200, 100)
	tpl := domain.CopybookTemplate{GridRows: 1, GridCols: 1, HeaderRatio: 0}
	result := &domain.BatchResult{
		Analyses: []domain.CharAnalysis{{Row: 1, Column: 1}},
	}

	NewGridCropper().Attach(result, imageBytes, tpl)

	require.NotEmpty(t, result.Analyses[0].CharImageBase64)
	crop := decodeCrop(t, result.Analyses[0].CharImageBase64)
	// inset = min(200,100)*0.05 = 5
	assert.Equal(t, 190, crop.Bounds().Dx())
	assert.Equal(t, 90, crop.Bounds().Dy())
}

func TestGridCropper_OutOfRangeSkipped(t *testing.T) {
	imageBytes := makePNG(t, 400, 400)
	tpl := domain.CopybookTemplate{GridRows: 2, GridCols: 2, HeaderRatio: 0}
	result := &domain.BatchResult{
		Analyses: []domain.CharAnalysis{
			{Row: 0, Column: 0},
			{Row: 3, Column: 1},
			{Row: 1, Column: 5},
			{Row: 2, Column: 2},
		},
	}

	NewGridCropper().Attach(result, imageBytes, tpl)

	assert.Empty(t, result.Analyses[0].CharImageBase64)
	assert.Empty(t, result.Analyses[1].CharImageBase64)
	assert.Empty(t, result.Analyses[2].CharImageBase64)
	assert.NotEmpty(t, result.Analyses[3].CharImageBase64)
}

func TestGridCropper_UndecodableImage(t *testing.T) {
	result := &domain.BatchResult{
		Analyses: []domain.CharAnalysis{{Row: 1, Column: 1}},
	}
	// 解码失败不影响批改结果
	NewGridCropper().Attach(result, []byte("not an image"), domain.CopybookTemplate{GridRows: 1, GridCols: 1})
	assert.Empty(t, result.Analyses[0].CharImageBase64)
}

func TestGridCropper_NoAnalyses(t *testing.T) {
	NewGridCropper().Attach(&domain.BatchResult{}, nil, domain.CopybookTemplate{GridRows: 1, GridCols: 1})
}
