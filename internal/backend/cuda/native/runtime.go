//go:build cuda

// Package native binds the handful of CUDA runtime and cuBLAS entry points the
// cuda backend needs. Declarations are local so that only the shared
// libraries, not the toolkit headers, are required to build.
package native

/*
#cgo LDFLAGS: -lcudart -lcublas
#include <stddef.h>

extern const char *cudaGetErrorString(int err);
extern int cudaGetDeviceCount(int *count);
extern int cudaSetDevice(int device);
extern int cudaMalloc(void **ptr, size_t size);
extern int cudaFree(void *ptr);
extern int cudaMemcpy(void *dst, const void *src, size_t size, int kind);

typedef void *blas_t;

extern int cublasCreate_v2(blas_t *handle);
extern int cublasDestroy_v2(blas_t handle);
extern int cublasSaxpy_v2(blas_t handle, int n, const float *alpha,
	const float *x, int incx, float *y, int incy);
extern int cublasSgemm_v2(blas_t handle, int transa, int transb,
	int m, int n, int k, const float *alpha,
	const float *a, int lda, const float *b, int ldb,
	const float *beta, float *c, int ldc);
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// cudaMemcpyKind values.
const (
	hostToDevice = 1
	deviceToHost = 2
)

// Error is a non-zero status returned by the CUDA runtime or cuBLAS.
type Error struct {
	Lib  string
	Code int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: status %d", e.Lib, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Lib, e.Code, e.Msg)
}

func rt(code C.int) error {
	if code == 0 {
		return nil
	}
	return &Error{Lib: "cudart", Code: int(code), Msg: C.GoString(C.cudaGetErrorString(code))}
}

func blas(code C.int) error {
	if code == 0 {
		return nil
	}
	return &Error{Lib: "cublas", Code: int(code)}
}

// Devices returns the number of visible CUDA devices.
func Devices() (int, error) {
	var n C.int
	if err := rt(C.cudaGetDeviceCount(&n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Use makes device index current for the calling thread.
func Use(index int) error {
	return rt(C.cudaSetDevice(C.int(index)))
}

// Buffer is device memory holding Len float32 values.
type Buffer struct {
	ptr unsafe.Pointer
	Len int
}

// Alloc reserves device memory for n float32 values.
func Alloc(n int) (Buffer, error) {
	if n <= 0 {
		return Buffer{}, fmt.Errorf("cuda alloc: %d elements", n)
	}
	var p unsafe.Pointer
	if err := rt(C.cudaMalloc(&p, C.size_t(n*4))); err != nil {
		return Buffer{}, err
	}
	return Buffer{ptr: p, Len: n}, nil
}

// Upload copies src into a fresh device buffer.
func Upload(src []float32) (Buffer, error) {
	buf, err := Alloc(len(src))
	if err != nil {
		return Buffer{}, err
	}
	if err := rt(C.cudaMemcpy(buf.ptr, unsafe.Pointer(&src[0]), C.size_t(len(src)*4), hostToDevice)); err != nil {
		buf.Free()
		return Buffer{}, err
	}
	return buf, nil
}

// Download copies the buffer into dst, which must hold Len values.
func (b Buffer) Download(dst []float32) error {
	if len(dst) != b.Len {
		return fmt.Errorf("cuda download: %d values into %d", b.Len, len(dst))
	}
	return rt(C.cudaMemcpy(unsafe.Pointer(&dst[0]), b.ptr, C.size_t(b.Len*4), deviceToHost))
}

// Free returns the memory to the device. Errors are not actionable here.
func (b Buffer) Free() {
	if b.ptr != nil {
		C.cudaFree(b.ptr)
	}
}

func floats(b Buffer) *C.float { return (*C.float)(b.ptr) }

// Blas is a cuBLAS handle bound to the current device.
type Blas struct{ h C.blas_t }

// NewBlas creates a handle on the current device.
func NewBlas() (*Blas, error) {
	var h C.blas_t
	if err := blas(C.cublasCreate_v2(&h)); err != nil {
		return nil, err
	}
	return &Blas{h: h}, nil
}

// Close destroys the handle. Later calls are no-ops.
func (b *Blas) Close() error {
	if b.h == nil {
		return nil
	}
	h := b.h
	b.h = nil
	return blas(C.cublasDestroy_v2(h))
}

// Axpy computes y += alpha*x.
func (b *Blas) Axpy(alpha float32, x, y Buffer) error {
	if x.Len != y.Len {
		return fmt.Errorf("cublas axpy: lengths %d and %d", x.Len, y.Len)
	}
	return blas(C.cublasSaxpy_v2(b.h, C.int(x.Len), (*C.float)(unsafe.Pointer(&alpha)), floats(x), 1, floats(y), 1))
}

// Gemm computes c = a@b for column-major a [m, k], b [k, n] and c [m, n].
func (b *Blas) Gemm(m, n, k int, a, bm, c Buffer) error {
	if a.Len != m*k || bm.Len != k*n || c.Len != m*n {
		return fmt.Errorf("cublas gemm: buffers do not fit %dx%dx%d", m, n, k)
	}
	one, zero := float32(1), float32(0)
	return blas(C.cublasSgemm_v2(b.h, 0, 0, C.int(m), C.int(n), C.int(k),
		(*C.float)(unsafe.Pointer(&one)), floats(a), C.int(m), floats(bm), C.int(k),
		(*C.float)(unsafe.Pointer(&zero)), floats(c), C.int(m)))
}
