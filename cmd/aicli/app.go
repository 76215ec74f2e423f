package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/aicli"
)

// withApp 装配运行时、执行 fn 并保证关闭
func (c *cli) withApp(ctx context.Context, initialize bool, fn func(*aicli.Runtime) error) error {
	rt, err := aicli.Open(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := rt.Close(sctx); cerr != nil {
			c.logger.Warn("shutdown finished with errors", zap.Error(cerr))
		}
	}()

	if initialize {
		rt.Start(ctx)
	}
	return fn(rt)
}
