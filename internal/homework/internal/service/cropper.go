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
	"image/draw"
	"image/png"

	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
)

// 向内收缩比例，避免截到网格线
const cellInsetRatio = 0.05

// GridCropper 基于字帖模板的确定性网格裁切：已知行列数直接按网格均分，
// 不依赖字符切分算法，无误差。裁切失败不影响批改结果。
type GridCropper struct {
	logger *elog.Component
}

func NewGridCropper() *GridCropper {
	return &GridCropper{
		logger: elog.DefaultLogger.With(elog.FieldComponent("GridCropper")),
	}
}

// Attach 在原图（未压缩）上裁出每个被点评字的单元格，以 Base64 PNG 附到分析项。
func (c *GridCropper) Attach(result *domain.BatchResult, imageBytes []byte, tpl domain.CopybookTemplate) {
	if result == nil || len(result.Analyses) == 0 {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		c.logger.Warn("模板裁切：无法解码图片", elog.FieldErr(err))
		return
	}

	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()
	headerPixels := int(float64(imgH) * tpl.HeaderRatio)
	gridHeight := imgH - headerPixels
	cellW := imgW / tpl.GridCols
	cellH := gridHeight / tpl.GridRows
	if cellW <= 0 || cellH <= 0 {
		c.logger.Warn("模板裁切：单元格尺寸非法",
			elog.Int("cellW", cellW), elog.Int("cellH", cellH))
		return
	}

	c.logger.Info("模板裁切",
		elog.Int("rows", tpl.GridRows), elog.Int("cols", tpl.GridCols),
		elog.Int("headerPixels", headerPixels),
		elog.Int("cellW", cellW), elog.Int("cellH", cellH))

	matched := 0
	for i := range result.Analyses {
		a := &result.Analyses[i]
		if a.Row < 1 || a.Column < 1 || a.Row > tpl.GridRows || a.Column > tpl.GridCols {
			c.logger.Debug("跳过越界位置",
				elog.String("char", a.RecognizedChar),
				elog.Int("row", a.Row), elog.Int("col", a.Column))
			continue
		}

		x := (a.Column - 1) * cellW
		y := headerPixels + (a.Row-1)*cellH
		inset := int(float64(min(cellW, cellH)) * cellInsetRatio)
		cropX := max(0, x+inset)
		cropY := max(0, y+inset)
		cropW := min(cellW-inset*2, imgW-cropX)
		cropH := min(cellH-inset*2, imgH-cropY)
		if cropW <= 0 || cropH <= 0 {
			continue
		}

		encoded, err := c.encodeCell(img, bounds.Min.X+cropX, bounds.Min.Y+cropY, cropW, cropH)
		if err != nil {
			c.logger.Warn("单元格编码失败", elog.FieldErr(err))
			continue
		}
		a.CharImageBase64 = encoded
		matched++

		c.logger.Debug("模板裁切成功",
			elog.String("char", a.RecognizedChar),
			elog.Int("row", a.Row), elog.Int("col", a.Column),
			elog.Int("w", cropW), elog.Int("h", cropH))
	}

	c.logger.Info("模板裁切完成",
		elog.Int("matched", matched), elog.Int("total", len(result.Analyses)))
}

func (c *GridCropper) encodeCell(src image.Image, x, y, w, h int) (string, error) {
	cell := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(cell, cell.Bounds(), src, image.Pt(x, y), draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cell); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
