package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	system := api.Group("/system")
	system.GET("/cache", s.cacheStatus)
	system.POST("/cache/invalidate", s.invalidateCache)
	system.GET("/replicas", s.replicaStatus)

	businesses := api.Group("/businesses")
	businesses.GET("", s.listBusinesses)
	businesses.POST("", s.createBusiness)
	businesses.GET("/:id", s.getBusiness)
	businesses.PUT("/:id", s.updateBusiness)
	businesses.DELETE("/:id", s.deleteBusiness)
	businesses.PUT("/:id/suspend", s.suspendBusiness)
	businesses.PUT("/:id/activate", s.activateBusiness)
	businesses.PUT("/:id/close", s.closeBusiness)

	brands := businesses.Group("/:id/brands")
	brands.GET("", s.listBrands)
	brands.POST("", s.createBrand)
	brands.GET("/:brandID", s.getBrand)
	brands.PUT("/:brandID", s.updateBrand)
	brands.DELETE("/:brandID", s.deleteBrand)
	brands.GET("/:brandID/products", s.listProducts)
	brands.POST("/:brandID/products", s.createProduct)

	businesses.POST("/:id/votes", s.recordVote)
	businesses.GET("/:id/report", s.businessReport)
}
