// Package serialization implements the .bopt training checkpoint format.
//
// A checkpoint stores model parameters, optimizer state and training
// progress so that a run can be resumed with identical results:
//
//	Format Structure:
//	  [4 bytes: Magic "BOPT"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [32 bytes: SHA-256 of the tensor data section]
//	  [Header: JSON metadata]
//	  [Padding to 64 bytes]
//	  [Tensor data: little-endian float32]
//
// Example usage:
//
//	ck := &serialization.Checkpoint{
//	    Header:    serialization.Header{Optimizer: "padam", Epoch: 3},
//	    Model:     model.StateDict(),
//	    Optimizer: opt.StateDict(),
//	}
//	if err := serialization.WriteFile("run.bopt", ck); err != nil {
//	    return err
//	}
//
//	ck, err := serialization.ReadFile("run.bopt")
//	if err != nil {
//	    return err
//	}
//	if err := model.LoadStateDict(ck.Model); err != nil {
//	    return err
//	}
package serialization
