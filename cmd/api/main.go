package main

import (
	"go.uber.org/fx"

	"github.com/SystonTigers/app-sub004/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
