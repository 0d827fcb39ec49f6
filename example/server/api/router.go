package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/9d77v/iec104/v2"
	"github.com/9d77v/iec104/v2/example/server/station"
)

//linkStatus 一条链路的状态
type linkStatus struct {
	Remote string       `json:"remote"`
	State  iec104.State `json:"state"`
	Stats  iec104.Stats `json:"stats"`
}

//NewRouter 状态、点表和指标接口
func NewRouter(srv *iec104.Server, st *station.Station) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		conns := srv.Conns()
		links := make([]linkStatus, 0, len(conns))
		for _, conn := range conns {
			links = append(links, linkStatus{
				Remote: conn.RemoteAddr(),
				State:  conn.State(),
				Stats:  conn.Stats(),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"common_addr": st.CommonAddr,
			"links":       links,
		})
	})
	r.GET("/points", func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Points())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
