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
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	// 解码手机拍摄的常见格式
	_ "image/gif"
	_ "image/png"

	"github.com/gotomicro/ego/core/elog"
	xdraw "golang.org/x/image/draw"
)

const jpegQuality = 85

// compressImage 发送前压缩：超过 maxSize 的边按比例缩小（双线性），
// 铺白底拍平透明通道后重编码为 JPEG，显著降低上游 token 消耗。
// 两边都不超过 maxSize 的图片原样返回，不做重编码。
// 解码失败时原样返回，绝不因图片格式问题中断批改。
func compressImage(data []byte, maxSize int, logger *elog.Component) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warn("图片解码失败，使用原始字节", elog.FieldErr(err))
		return data
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return data
	}

	var tw, th int
	if w >= h {
		tw = maxSize
		th = h * maxSize / w
	} else {
		th = maxSize
		tw = w * maxSize / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		logger.Warn("JPEG 编码失败，使用原始字节", elog.FieldErr(err))
		return data
	}
	logger.Info("图片压缩完成",
		elog.Int("origW", w), elog.Int("origH", h),
		elog.Int("newW", tw), elog.Int("newH", th),
		elog.Int("origBytes", len(data)), elog.Int("newBytes", buf.Len()))
	return buf.Bytes()
}
