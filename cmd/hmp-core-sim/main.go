/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package main implements hmp-core-sim, a host-side model of the RK3588
// heterogeneous core complex with a Prometheus metrics endpoint on top.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"

	"huawei.com/hmp-core/collector/socservice"
	"huawei.com/hmp-core/pkg/config"
	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/gic"
	"huawei.com/hmp-core/pkg/log"
	"huawei.com/hmp-core/pkg/mmio"
	"huawei.com/hmp-core/pkg/multicore"
	"huawei.com/hmp-core/pkg/npu"
	"huawei.com/hmp-core/pkg/sched"
	"huawei.com/hmp-core/server"
	"huawei.com/hmp-core/versions"
	"huawei.com/hmp-core/watchers"
)

const (
	exporterServerPort = 8082
	updateTimeConst    = 5
	oneMinute          = 60
	cacheTime          = 65 * time.Second
	defaultConcurrency = 5
	defaultConnection  = 20
	defaultLogDir      = "/var/log/hmp/hmp-core-sim"
	defaultCoreCount   = 8
	maxCoreCount       = 16
	defaultBootWait    = 2 * time.Second
	simIntLines        = 256
)

// Seed workload knobs: the doorbell SGI announces accelerator completions
// to the CPU side.
const (
	doorbellVector uint32 = 8
	inferenceUtil  uint32 = 75
)

var (
	updateTime   int
	coreCount    int
	bootWait     time.Duration
	policyConfig string
)

var serverHandler *server.ExporterServer

func init() {
	serverHandler = &server.ExporterServer{}
	flag.IntVar(&updateTime, "updateTime", updateTimeConst,
		"Interval (seconds) to update the metric cache,range[1-60]")
	flag.IntVar(&serverHandler.Port, "port", exporterServerPort,
		"The serverHandler port of the http service, range[1025-40000]")
	flag.StringVar(&serverHandler.Ip, "ip", os.Getenv("HOST_IP"),
		"The listen ip of the service,0.0.0.0 is not recommended when install on Multi-NIC host")
	flag.IntVar(&serverHandler.Concurrency, "concurrency", defaultConcurrency,
		"The max concurrency of the http serverHandler, range is [1-512]")
	flag.IntVar(&serverHandler.LimitIPConn, "limitIPConn", defaultConcurrency,
		"the tcp connection limit for each Ip, range is [1,128]")
	flag.IntVar(&serverHandler.LimitTotalConn, "limitTotalConn", defaultConnection,
		"the tcp connection limit for all request, range is [1,512]")
	flag.StringVar(&serverHandler.LimitIPReq, "limitIPReq", "20/1",
		"the http request limit counts for each Ip,20/1 means allow 20 request in 1 seconds")
	flag.IntVar(&coreCount, "cores", defaultCoreCount,
		"number of simulated cores, split evenly between the clusters, range[2-16]")
	flag.DurationVar(&bootWait, "bringup-timeout", defaultBootWait,
		"how long to wait for each secondary core to come online")
	flag.StringVar(&policyConfig, "policy-config", "",
		"path of the scheduling policy file, empty runs the stock policy")
}

func checkCommonParamValid() error {
	if updateTime > oneMinute || updateTime < 1 {
		return errors.New("the updateTime is invalid")
	}
	if coreCount < 2 || coreCount > maxCoreCount || coreCount%2 != 0 {
		return errors.New("the cores count is invalid")
	}
	if bootWait < time.Millisecond || bootWait > time.Minute {
		return errors.New("the bringup-timeout is invalid")
	}
	return nil
}

func loadPolicy() (*config.PolicyFile, error) {
	if policyConfig == "" {
		log.Infoln("no policy file given, using the stock policy")
		return config.Default(), nil
	}
	return config.Load(policyConfig)
}

// socModel bundles the simulated complex: the interrupt controller over
// in-memory register blocks, the core table, the IPI registry, the task
// scheduler and the accelerator context registry.
type socModel struct {
	ic        *gic.Gic500
	table     *multicore.CoreTable
	ipi       *multicore.IPIRegistry
	scheduler *sched.Scheduler
	npus      *npu.Registry
}

func buildModel(policy *config.PolicyFile) *socModel {
	topo := multicore.Topology{PerfCores: coreCount / 2, EffCores: coreCount / 2}

	dist := mmio.NewSimBlock()
	gic.SeedSimTyper(dist, simIntLines)
	ic := gic.New(dist, mmio.NewSimBlock(), gic.NewSimCPUInterface(topo.Total()))
	ic.InitDistributor()
	ic.InitCorePrivate(multicore.BootCore)

	table := multicore.NewCoreTable(topo, ic, clock.RealClock{},
		multicore.FixedAffinity(multicore.BootCore))
	return &socModel{
		ic:        ic,
		table:     table,
		ipi:       multicore.NewIPIRegistry(ic),
		scheduler: sched.New(topo, policy.SchedConfig()),
		npus:      npu.NewRegistry(),
	}
}

// trampoline plays one secondary core: it polls the CPU interface the way
// the hardware vector table would, answers the wake vector by initializing
// its redistributor frame and routes everything else to the IPI registry.
func (m *socModel) trampoline(ctx context.Context, core cpuset.CoreID) {
	for ctx.Err() == nil {
		id := m.ic.Acknowledge(core)
		switch {
		case id == gic.SpuriousID:
			time.Sleep(time.Millisecond)
		case id == multicore.WakeVector:
			m.ic.InitCorePrivate(core)
			if err := m.table.MarkOnline(core); err != nil {
				log.Errorf("core %d failed to mark online: %v", core, err)
			}
			m.ic.Complete(core, id)
		default:
			m.ipi.Dispatch(id, core)
			m.ic.Complete(core, id)
		}
	}
}

func (m *socModel) boot(ctx context.Context) error {
	topo := m.table.Topology()
	for id := 1; id < topo.Total(); id++ {
		go m.trampoline(ctx, cpuset.CoreID(id))
	}

	report := m.table.BringUpAll(bootWait)
	if report.Total < topo.Total() {
		return fmt.Errorf("only %d of %d cores came online", report.Total, topo.Total())
	}
	return nil
}

// seedWorkload places one inference pass on the model so the metrics
// endpoint reports a live system: the pre/post stages become scheduler
// tasks, the accelerator stage rings the doorbell SGI.
func (m *socModel) seedWorkload(policy npu.Policy) error {
	err := m.ipi.Register(doorbellVector, func(vector uint32, core cpuset.CoreID) {
		log.Debugf("doorbell %d handled on core %d", vector, core)
	})
	if err != nil {
		return err
	}

	model := npu.NewContext(1, "resnet50")
	if _, err = m.npus.Register(model); err != nil {
		return err
	}

	pre := npu.Advise(policy, npu.Preprocess)
	log.Infof("preprocess advice under %s: %s", policy, pre)
	m.scheduler.Submit(sched.NewTask(1, 0, sched.AcceleratorPrePost))

	model.StartInference()
	model.SetUtilization(inferenceUtil)
	inf := npu.Advise(policy, npu.Inference)
	log.Infof("inference advice under %s: %s", policy, inf)
	m.ipi.Send(doorbellVector, inf.SuggestedCores)

	m.scheduler.Submit(sched.NewTask(2, 0, sched.LowPower))

	// The boot core has no trampoline; drain anything addressed to it here.
	for {
		id := m.ic.Acknowledge(multicore.BootCore)
		if id == gic.SpuriousID {
			break
		}
		m.ipi.Dispatch(id, multicore.BootCore)
		m.ic.Complete(multicore.BootCore, id)
	}

	summary := m.scheduler.LoadSummary()
	log.Infof("workload seeded: queue %d, perf avg %d%%, eff avg %d%%",
		m.scheduler.QueueDepth(), summary.PerfAvg, summary.EffAvg)
	return nil
}

func (m *socModel) reloadPolicy() {
	policy, err := loadPolicy()
	if err != nil {
		log.Errorf("policy reload failed, keeping the active thresholds: %v", err)
		return
	}
	m.scheduler.Reconfigure(policy.SchedConfig())
}

// events blocks on watcher and signal traffic until a shutdown signal
// arrives or the service context dies. Policy file changes and SIGHUP
// re-apply the thresholds in place.
func (m *socModel) events(ctx context.Context, watcher *fsnotify.Watcher, sigs chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			log.Infoln("service context cancelled, shutting down.")
			return

		case event := <-watcher.Events:
			if filepath.Clean(event.Name) == filepath.Clean(policyConfig) &&
				event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Infof("inotify: %s changed, reloading policy.", event.Name)
				m.reloadPolicy()
			}

		case err := <-watcher.Errors:
			log.Infof("inotify: %s", err)

		case s := <-sigs:
			if s == syscall.SIGHUP {
				log.Infoln("Received SIGHUP, reloading policy.")
				m.reloadPolicy()
				continue
			}
			log.Infof("Received signal %v, shutting down.", s)
			return
		}
	}
}

func start() error {
	syscall.Umask(0)

	logFileName := path.Join(defaultLogDir, "hmp-core-sim.log")
	if err := log.InitLogging(logFileName); err != nil {
		return fmt.Errorf("init logging failed: %v", err)
	}
	log.Infof("hmp-core-sim starting and the version is %s", versions.Version())

	if err := checkCommonParamValid(); err != nil {
		return err
	}
	if err := serverHandler.VerifyServerParams(); err != nil {
		return err
	}

	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := buildModel(policy)
	if err = model.boot(ctx); err != nil {
		return err
	}
	if err = model.seedWorkload(policy.AdvisorPolicy()); err != nil {
		return err
	}

	log.Infoln("Starting FS watcher.")
	var watchFiles []string
	if policyConfig != "" {
		watchFiles = append(watchFiles, policyConfig)
	}
	watcher, err := watchers.NewFSWatcher(watchFiles...)
	if err != nil {
		return fmt.Errorf("failed to create FS watcher: %v", err)
	}
	defer watcher.Close()

	log.Infoln("Starting OS watcher.")
	sigs := watchers.NewOSWatcher(syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	service := socservice.New(socservice.CollectorName, model.table, model.scheduler, model.npus)
	if err = serverHandler.RegisterCollectorService(service); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(serverHandler.CreateCollector(cacheTime, time.Duration(updateTime)*time.Second))

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverHandler.StartCollect(ctx, cancel)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverHandler.StartServe(ctx, cancel, reg)
	}()

	model.events(ctx, watcher, sigs)
	cancel()
	wg.Wait()
	return nil
}

func main() {
	flag.Parse()

	if err := start(); err != nil {
		log.Fatalln(err)
	}
}
