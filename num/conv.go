package num

import "fmt"

// ConvGeom describes the geometry of a 2d convolution over a single input image.
type ConvGeom struct {
	Depth, Height, Width      int
	Nfeats, Size, Stride, Pad int
}

// OutSize returns the output spatial dimensions.
func (g ConvGeom) OutSize() (oh, ow int) {
	oh = (g.Height+2*g.Pad-g.Size)/g.Stride + 1
	ow = (g.Width+2*g.Pad-g.Size)/g.Stride + 1
	return
}

// OutShape returns the per image output shape as [feats, oh, ow].
func (g ConvGeom) OutShape() []int {
	oh, ow := g.OutSize()
	return []int{g.Nfeats, oh, ow}
}

// ColShape returns the shape of the im2col matrix as [depth*size*size, oh*ow].
func (g ConvGeom) ColShape() []int {
	oh, ow := g.OutSize()
	return []int{g.Depth * g.Size * g.Size, oh * ow}
}

// Valid checks that the geometry yields a positive output size.
func (g ConvGeom) Valid() bool {
	oh, ow := g.OutSize()
	return g.Size > 0 && g.Stride > 0 && g.Pad >= 0 && oh > 0 && ow > 0
}

// Im2col unrolls one [depth, height, width] image into a column matrix such
// that convolution is a single matrix product with the [nfeats, depth*size*size]
// filter matrix. Positions outside the padded input read as zero.
func Im2col(src, col *Array, g ConvGeom) {
	if !SameShape(col.dims, g.ColShape()) {
		panic(fmt.Sprintf("num: im2col shape mismatch %v", col.dims))
	}
	oh, ow := g.OutSize()
	cols := oh * ow
	for c := 0; c < g.Depth; c++ {
		for ky := 0; ky < g.Size; ky++ {
			for kx := 0; kx < g.Size; kx++ {
				row := (c*g.Size+ky)*g.Size + kx
				for oy := 0; oy < oh; oy++ {
					y := oy*g.Stride - g.Pad + ky
					for ox := 0; ox < ow; ox++ {
						x := ox*g.Stride - g.Pad + kx
						var val float32
						if y >= 0 && y < g.Height && x >= 0 && x < g.Width {
							val = src.data[(c*g.Height+y)*g.Width+x]
						}
						col.data[row*cols+oy*ow+ox] = val
					}
				}
			}
		}
	}
}

// Col2im accumulates a column matrix gradient back into [depth, height, width]
// image layout, the reverse mapping to Im2col. dst is not zeroed first.
func Col2im(col, dst *Array, g ConvGeom) {
	oh, ow := g.OutSize()
	cols := oh * ow
	for c := 0; c < g.Depth; c++ {
		for ky := 0; ky < g.Size; ky++ {
			for kx := 0; kx < g.Size; kx++ {
				row := (c*g.Size+ky)*g.Size + kx
				for oy := 0; oy < oh; oy++ {
					y := oy*g.Stride - g.Pad + ky
					if y < 0 || y >= g.Height {
						continue
					}
					for ox := 0; ox < ow; ox++ {
						x := ox*g.Stride - g.Pad + kx
						if x < 0 || x >= g.Width {
							continue
						}
						dst.data[(c*g.Height+y)*g.Width+x] += col.data[row*cols+oy*ow+ox]
					}
				}
			}
		}
	}
}

// MaxPool downsamples each [n, depth, h, w] input plane taking the max over
// size x size windows with the given stride. mask records the source index of
// each maximum for the backward pass and must have dst.Size() elements.
func MaxPool(src, dst *Array, mask []int32, size, stride int) {
	n, d, h, w := src.dims[0], src.dims[1], src.dims[2], src.dims[3]
	oh, ow := dst.dims[2], dst.dims[3]
	di := 0
	for i := 0; i < n; i++ {
		for c := 0; c < d; c++ {
			plane := (i*d + c) * h * w
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					max := float32(0)
					argmax := -1
					for ky := 0; ky < size; ky++ {
						y := oy*stride + ky
						if y >= h {
							break
						}
						for kx := 0; kx < size; kx++ {
							x := ox*stride + kx
							if x >= w {
								break
							}
							ix := plane + y*w + x
							if argmax < 0 || src.data[ix] > max {
								max, argmax = src.data[ix], ix
							}
						}
					}
					dst.data[di] = max
					mask[di] = int32(argmax)
					di++
				}
			}
		}
	}
}

// MaxPoolGrad routes the output gradient back to the positions recorded in
// mask, zeroing dsrc first.
func MaxPoolGrad(grad, dsrc *Array, mask []int32) {
	Fill(dsrc, 0)
	for i, ix := range mask[:len(grad.data)] {
		dsrc.data[ix] += grad.data[i]
	}
}
